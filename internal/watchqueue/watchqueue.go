// internal/watchqueue/watchqueue.go

// Package watchqueue follows a queue file of bug IDs and hands each one to
// a handler through a bounded worker pool. Appending a line to the queue
// file is the whole enqueue protocol, which makes the watcher trivially
// scriptable from CI hooks and bug tracker webhooks.
package watchqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"

	"github.com/failcase/repro-cli/internal/config"
)

// Handler processes one dequeued bug ID. A returned error is logged and
// the watch loop moves on; a bad ID must never stop the queue.
type Handler func(ctx context.Context, bugID string) error

// Watcher tails the queue file and fans bug IDs out to workers.
type Watcher struct {
	cfg    config.WatchConfig
	handle Handler
	logger *zap.Logger
}

// New validates the pieces the watcher cannot run without.
func New(cfg config.WatchConfig, handler Handler, logger *zap.Logger) (*Watcher, error) {
	if cfg.QueueFile == "" {
		return nil, errors.New("watch.queue_file must be configured")
	}
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Watcher{
		cfg:    cfg,
		handle: handler,
		logger: logger.Named("watchqueue"),
	}, nil
}

// Run tails the queue file until ctx is cancelled; cancellation is a normal
// shutdown, not an error. Content already in the file at startup is skipped,
// only lines appended afterwards are dispatched. The file may not exist yet;
// tailing begins once it appears.
func (w *Watcher) Run(ctx context.Context) error {
	t, err := tail.TailFile(w.cfg.QueueFile, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: &tail.SeekInfo{Offset: 0, Whence: 2},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail queue file: %w", err)
	}
	defer func() {
		t.Stop()
		t.Cleanup()
	}()

	concurrency := w.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	w.logger.Info("Watching queue file",
		zap.String("queue_file", w.cfg.QueueFile),
		zap.Int("concurrency", concurrency))

	ids := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go w.runWorker(ctx, i+1, ids, &wg)
	}
	defer func() {
		close(ids)
		wg.Wait()
		w.logger.Info("Queue watcher stopped.")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				w.logger.Info("Queue file tailer channel closed.")
				return nil
			}
			if line.Err != nil {
				w.logger.Warn("Error reading from queue file", zap.Error(line.Err))
				continue
			}

			id := strings.TrimSpace(line.Text)
			if id == "" {
				continue
			}

			select {
			case ids <- id:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// runWorker is the loop for a single worker goroutine. Workers exit when the
// context is cancelled or the dispatch channel closes.
func (w *Watcher) runWorker(ctx context.Context, workerID int, ids <-chan string, wg *sync.WaitGroup) {
	defer wg.Done()
	logger := w.logger.With(zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-ids:
			if !ok {
				return
			}
			logger.Info("Dequeued bug", zap.String("bug_id", id))
			if err := w.handle(ctx, id); err != nil {
				logger.Error("Queued run failed", zap.String("bug_id", id), zap.Error(err))
			}
		}
	}
}
