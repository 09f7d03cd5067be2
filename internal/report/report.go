// Package report runs the scheduled pipeline summary: a read-only count of
// items per lifecycle state, logged for operators. It never writes to the
// store.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"beantrack/internal/model"
	"beantrack/internal/store"
)

// Reporter periodically logs how many items sit in each lifecycle state.
type Reporter struct {
	db   *sql.DB
	log  *zap.Logger
	cron *cron.Cron
}

// New creates a Reporter.
func New(db *sql.DB, log *zap.Logger) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{db: db, log: log, cron: cron.New()}
}

// Start registers the summary job on the given cron schedule and starts the
// scheduler.
func (r *Reporter) Start(schedule string) error {
	_, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		r.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling pipeline report: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop stops the scheduler, waiting for a running job to finish.
func (r *Reporter) Stop() {
	<-r.cron.Stop().Done()
}

// Run produces one summary immediately.
func (r *Reporter) Run(ctx context.Context) {
	counts, err := store.CountItemsByState(ctx, r.db)
	if err != nil {
		r.log.Error("pipeline report failed", zap.Error(err))
		return
	}

	fields := make([]zap.Field, 0, len(model.StateOrder)+1)
	total := 0
	for _, state := range model.StateOrder {
		n := counts[state]
		total += n
		fields = append(fields, zap.Int(string(state), n))
	}
	fields = append(fields, zap.Int("total", total))

	r.log.Info("pipeline summary", fields...)
}
