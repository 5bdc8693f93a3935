// internal/bugstore/bugstore.go

// Package bugstore supplies bug records to the engine and records run
// outcomes back onto them. Three backends exist: postgres, a spreadsheet
// REST API, and an explicit disabled store for step-file-only use. All of
// them speak schemas.BugStore; the CLI picks one from config.
package bugstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/failcase/repro-cli/api/schemas"
	"github.com/failcase/repro-cli/internal/config"
	"github.com/failcase/repro-cli/internal/netutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrBugNotFound reports that a backend holds no record for the
	// requested bug ID.
	ErrBugNotFound = errors.New("bug not found")

	// ErrNoStore reports that the disabled backend was asked for a record.
	// Callers hitting this should supply steps directly instead.
	ErrNoStore = errors.New("no bug store configured")
)

// New builds the backend cfg selects. The returned store is ready to use;
// the caller owns Close.
func New(ctx context.Context, cfg config.BugStoreConfig, logger *zap.Logger) (schemas.BugStore, error) {
	switch cfg.Type {
	case "", "none":
		return NewDisabled(), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres pool: %w", err)
		}
		store, err := NewPostgres(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case "sheets":
		return NewSheets(cfg.Sheets, nil, logger)
	default:
		return nil, fmt.Errorf("unknown bugstore type %q", cfg.Type)
	}
}

// defaultHTTPClient backs HTTP stores that were not handed a client. The
// transport transparently undoes response compression.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: netutil.NewTransport(nil),
		Timeout:   30 * time.Second,
	}
}

// splitSteps turns a newline-separated steps cell into ordered step lines.
// Blank lines are dropped; list numbering stays on the line because the
// step parser strips it itself.
func splitSteps(raw string) []string {
	var steps []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			steps = append(steps, line)
		}
	}
	return steps
}

// statusOrRaw canonicalizes a stored status and passes unknown values
// through unchanged, so a hand-edited record still loads.
func statusOrRaw(raw string) schemas.BugStatus {
	if st, err := schemas.ParseBugStatus(raw); err == nil {
		return st
	}
	return schemas.BugStatus(strings.TrimSpace(raw))
}
