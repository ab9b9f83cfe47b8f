package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	cases := []struct {
		query  string
		page   int
		limit  int
		offset int
	}{
		{"", 1, 12, 0},
		{"?page=3&limit=5", 3, 5, 10},
		{"?page=-1&limit=0", 1, 12, 0},
		{"?page=abc&limit=500", 1, 100, 0},
	}

	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			app := fiber.New()
			var got Pagination
			app.Get("/", func(c *fiber.Ctx) error {
				got = ParsePagination(c, 12)
				return nil
			})

			_, err := app.Test(httptest.NewRequest("GET", "/"+tc.query, nil))
			require.NoError(t, err)
			assert.Equal(t, tc.page, got.Page)
			assert.Equal(t, tc.limit, got.Limit)
			assert.Equal(t, tc.offset, got.Offset)
		})
	}
}

func TestTotalPages(t *testing.T) {
	p := Pagination{Page: 1, Limit: 10}
	assert.EqualValues(t, 0, p.TotalPages(0))
	assert.EqualValues(t, 1, p.TotalPages(10))
	assert.EqualValues(t, 2, p.TotalPages(11))
}
