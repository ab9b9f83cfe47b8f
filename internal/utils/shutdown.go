package utils

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const shutdownTimeout = 15 * time.Second

// ShutdownManager runs registered cleanup tasks, in registration order,
// once the process receives SIGINT or SIGTERM.
type ShutdownManager struct {
	cancelFunc    context.CancelFunc
	shutdownTasks []func(context.Context) error
	mu            sync.Mutex
	done          chan struct{}
	once          sync.Once
}

// NewShutdownManager returns a context cancelled at shutdown and its manager.
func NewShutdownManager(ctx context.Context) (context.Context, *ShutdownManager) {
	ctx, cancel := context.WithCancel(ctx)
	manager := &ShutdownManager{
		cancelFunc: cancel,
		done:       make(chan struct{}),
	}
	return ctx, manager
}

// Register adds a cleanup task.
func (sm *ShutdownManager) Register(task func(context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownTasks = append(sm.shutdownTasks, task)
}

// StartListening waits for a termination signal in the background.
func (sm *ShutdownManager) StartListening() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("[Shutdown] Received signal: %v", sig)
		sm.Shutdown()
	}()
}

// Shutdown cancels the root context and runs every task once.
func (sm *ShutdownManager) Shutdown() {
	sm.once.Do(func() {
		defer close(sm.done)
		sm.cancelFunc()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		sm.mu.Lock()
		defer sm.mu.Unlock()
		for _, task := range sm.shutdownTasks {
			if err := task(ctx); err != nil {
				log.Printf("[Shutdown] Error during shutdown: %v", err)
			}
		}

		log.Println("[Shutdown] Graceful shutdown complete")
	})
}

// Wait blocks until Shutdown has finished.
func (sm *ShutdownManager) Wait() {
	<-sm.done
}
