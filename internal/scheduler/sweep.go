// Package scheduler runs the periodic incremental sweep: a cron-driven
// rebuild of whatever segments ingestion and sync hooks have flagged dirty
// since the last pass. The sweep is the only automatic path from dirty flag
// to artifact; bulk ingestion never rebuilds inline.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-sitemap-backend/internal/services"
)

// Rebuilder is the slice of the regenerator the sweep needs.
type Rebuilder interface {
	Rebuild(ctx context.Context, mode services.RebuildMode) (*services.RebuildResult, error)
}

// Sweeper schedules incremental rebuild passes.
type Sweeper struct {
	regen   Rebuilder
	spec    string
	timeout time.Duration

	cron    *cron.Cron
	running atomic.Bool
}

// NewSweeper builds a sweeper with the given cron spec (standard 5-field
// syntax) and a per-pass timeout.
func NewSweeper(regen Rebuilder, spec string, timeout time.Duration) *Sweeper {
	return &Sweeper{regen: regen, spec: spec, timeout: timeout}
}

// Start registers the sweep job and starts the cron runner. Returns an error
// when the spec does not parse.
func (s *Sweeper) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.spec, s.sweep); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	log.Info().Str("spec", s.spec).Msg("incremental sweep scheduled")
	return nil
}

// Stop halts the cron runner and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// sweep runs one incremental pass. Passes never overlap: if the previous one
// is still running the tick is dropped, since the next tick will pick up the
// same dirty set anyway.
func (s *Sweeper) sweep() {
	if !s.running.CompareAndSwap(false, true) {
		log.Warn().Msg("incremental sweep still running, tick skipped")
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.regen.Rebuild(ctx, services.RebuildIncremental)
	if err != nil {
		log.Error().Err(err).Msg("incremental sweep failed")
		return
	}
	if !res.Success {
		log.Error().Str("index_error", res.IndexError).Msg("incremental sweep index write failed")
	}
}
