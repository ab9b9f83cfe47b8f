// Command cron-trigger calls one of the server's scheduled job endpoints.
// It is meant to be run by an external scheduler such as cron or a
// Kubernetes CronJob.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

var jobs = map[string]bool{
	"pending-reminders":  true,
	"daily-new-products": true,
}

func main() {
	_ = godotenv.Load()

	job := flag.String("job", "", "job to run: pending-reminders or daily-new-products")
	baseURL := flag.String("url", envOr("CRON_TARGET_URL", "http://localhost:8080"), "server base URL")
	secret := flag.String("secret", os.Getenv("CRON_SECRET"), "shared secret sent as x-cron-secret")
	timeout := flag.Duration("timeout", 2*time.Minute, "request timeout")
	flag.Parse()

	if !jobs[*job] {
		fmt.Fprintf(os.Stderr, "unknown job %q\n", *job)
		flag.Usage()
		os.Exit(2)
	}

	if err := trigger(*baseURL, *job, *secret, *timeout, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func trigger(baseURL, job, secret string, timeout time.Duration, out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	url := strings.TrimRight(baseURL, "/") + "/api/cron/" + job
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-cron-secret", secret)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, strings.TrimSpace(string(body)))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", job, resp.Status)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
