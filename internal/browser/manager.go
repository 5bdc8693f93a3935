// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/failcase/repro-cli/api/schemas"
	"github.com/failcase/repro-cli/internal/config"
)

// Manager owns the process-wide Chrome allocator and hands out isolated
// page sessions. Each session is a fresh browser context (own cookie jar,
// storage and cache), so concurrent runs cannot observe each other. A
// weighted semaphore caps how many sessions are live at once.
type Manager struct {
	timeouts schemas.Timeouts
	logger   *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	sem         *semaphore.Weighted

	mu     sync.Mutex
	closed bool
}

// NewManager creates the allocator from configuration. Chrome itself starts
// lazily on the first NewPage call.
func NewManager(cfg config.BrowserConfig, timeouts schemas.Timeouts, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := int64(cfg.Concurrency)
	if limit < 1 {
		limit = 1
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOptions(cfg)...)

	return &Manager{
		timeouts:    timeouts,
		logger:      logger.Named("browser"),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		sem:         semaphore.NewWeighted(limit),
	}
}

// NewPage opens a fresh browser context and returns a session bound to it
// plus a release func. The release func closes the tab and frees the
// concurrency slot; it is safe to call more than once. Acquiring a slot
// blocks until one is free or ctx is done.
func (m *Manager) NewPage(ctx context.Context) (*Session, func(), error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, fmt.Errorf("browser manager is closed")
	}
	m.mu.Unlock()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("waiting for a browser slot: %w", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx)

	// Materialize the target now so event listeners attach before the first
	// navigation. This also surfaces a missing Chrome binary immediately.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		m.sem.Release(1)
		return nil, nil, fmt.Errorf("failed to start browser target: %w", err)
	}

	session := newSession(tabCtx, m.timeouts, m.logger)

	var once sync.Once
	release := func() {
		once.Do(func() {
			tabCancel()
			m.sem.Release(1)
			m.logger.Debug("Released browser session", zap.String("session_id", session.ID()))
		})
	}

	m.logger.Debug("Opened browser session", zap.String("session_id", session.ID()))
	return session, release, nil
}

// Close shuts the allocator down. Outstanding sessions are terminated with
// it; callers should release sessions first.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.allocCancel()
	m.logger.Debug("Browser manager closed")
}

// execOptions translates the browser configuration into chromedp allocator
// options.
func execOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		// Recommended for stability in containers and headless environments.
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	if cfg.NoSandbox {
		// Required on hardened systems where the Chrome sandbox cannot start.
		opts = append(opts, chromedp.NoSandbox)
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		// The chromedp defaults enable headless; turn it back off.
		opts = append(opts, chromedp.Flag("headless", false))
	}

	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}

	for _, arg := range cfg.ExtraArgs {
		key, value := parseExtraArg(arg)
		if key == "" {
			continue
		}
		if value == "" {
			opts = append(opts, chromedp.Flag(key, true))
		} else {
			opts = append(opts, chromedp.Flag(key, value))
		}
	}

	return opts
}

// parseExtraArg splits a raw command line argument into the flag name and an
// optional value. chromedp adds the leading dashes itself, so they are
// stripped here.
func parseExtraArg(arg string) (string, string) {
	arg = strings.TrimSpace(arg)
	arg = strings.TrimLeft(arg, "-")
	if arg == "" {
		return "", ""
	}
	key, value, _ := strings.Cut(arg, "=")
	return key, value
}
