package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/caredesk/internal/config"
	"github.com/ehr/caredesk/internal/domain/care"
	"github.com/ehr/caredesk/internal/orchestrator"
	"github.com/ehr/caredesk/internal/platform/gateway"
	"github.com/ehr/caredesk/internal/state"
)

type snapshotOptions struct {
	Select  string
	Search  string
	Timeout time.Duration
}

// runSnapshot loads the list, settles the default (or requested) selection,
// and writes the snapshot to out. Failed resources show up in the snapshot
// rather than as an error.
func runSnapshot(ctx context.Context, cfg *config.Config, logger zerolog.Logger, out io.Writer, opts snapshotOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * cfg.RequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	gw := gateway.New(cfg.APIURL,
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithLogger(logger),
	)
	store := state.NewStore()
	defer store.Close()
	orch := orchestrator.New(store, gw,
		orchestrator.WithLogger(logger),
		orchestrator.WithMaxParallel(cfg.MaxParallelFetches),
	)

	if opts.Search != "" {
		orch.SetSearch(opts.Search)
	}
	if err := orch.LoadList(ctx).WaitContext(ctx); err != nil {
		return fmt.Errorf("load patients: %w", err)
	}
	if opts.Select != "" {
		if err := orch.SelectItem(ctx, care.ID(opts.Select)).WaitContext(ctx); err != nil {
			return fmt.Errorf("select %s: %w", opts.Select, err)
		}
	}
	orch.Wait()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(store.Snapshot())
}
