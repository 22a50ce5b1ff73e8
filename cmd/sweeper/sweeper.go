package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wangwalon/myname-world/internal/aws"
	"github.com/wangwalon/myname-world/internal/metrics"
	"github.com/wangwalon/myname-world/internal/orders"
)

// Sweeper re-enqueues orders the queue lost track of: queued rows whose
// message never arrived (or failed), failed rows awaiting retry, and
// processing rows whose worker died mid-flight.
type Sweeper struct {
	orderStore *orders.Store
	publisher  *aws.Publisher
	recorder   *metrics.Recorder
	batchSize  int32
	staleAfter time.Duration
	nowFunc    func() time.Time
}

// NewSweeper wires a Sweeper. batchSize bounds the work per invocation;
// staleAfter is how long a processing row may sit before it counts as stuck.
func NewSweeper(store *orders.Store, publisher *aws.Publisher, recorder *metrics.Recorder, batchSize int, staleAfter time.Duration) *Sweeper {
	return &Sweeper{
		orderStore: store,
		publisher:  publisher,
		recorder:   recorder,
		batchSize:  int32(batchSize),
		staleAfter: staleAfter,
		nowFunc:    time.Now,
	}
}

// SweepReport summarizes one sweep for the invocation response and the logs.
type SweepReport struct {
	ResetStale  int `json:"reset_stale"`
	ResetFailed int `json:"reset_failed"`
	Enqueued    int `json:"enqueued"`
}

// Sweep performs one pass. Individual row errors are logged and skipped so a
// single bad row cannot wedge the whole schedule.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	// stuck processing rows go back to queued first
	processing, err := s.orderStore.ListByStatus(ctx, orders.StatusProcessing, s.batchSize)
	if err != nil {
		return report, err
	}
	cutoff := s.nowFunc().UTC().Add(-s.staleAfter)
	for _, o := range processing {
		if o.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.orderStore.ResetForRetry(ctx, o.SessionID, orders.StatusProcessing); err != nil {
			if err != orders.ErrStatusMismatch {
				log.Warn().Err(err).Str("session_id", o.SessionID).Msg("failed to reset stale order")
			}
			continue
		}
		report.ResetStale++
	}

	// failed rows are retried on the next pass through queued
	failed, err := s.orderStore.ListByStatus(ctx, orders.StatusFailed, s.batchSize)
	if err != nil {
		return report, err
	}
	for _, o := range failed {
		if err := s.orderStore.ResetForRetry(ctx, o.SessionID, orders.StatusFailed); err != nil {
			if err != orders.ErrStatusMismatch {
				log.Warn().Err(err).Str("session_id", o.SessionID).Msg("failed to reset failed order")
			}
			continue
		}
		report.ResetFailed++
	}

	queued, err := s.orderStore.ListByStatus(ctx, orders.StatusQueued, s.batchSize)
	if err != nil {
		return report, err
	}
	for _, o := range queued {
		if int32(report.Enqueued) >= s.batchSize {
			break
		}
		body, _ := json.Marshal(map[string]string{
			"session_id":     o.SessionID,
			"correlation_id": uuid.NewString(),
		})
		attrs := map[string]string{"session_id": o.SessionID, "source": "sweeper"}
		if err := s.publisher.SendRenderMessage(ctx, string(body), attrs); err != nil {
			log.Warn().Err(err).Str("session_id", o.SessionID).Msg("failed to enqueue order")
			continue
		}
		s.recorder.Count(ctx, metrics.MetricSwept)
		report.Enqueued++
	}

	log.Info().
		Int("reset_stale", report.ResetStale).
		Int("reset_failed", report.ResetFailed).
		Int("enqueued", report.Enqueued).
		Msg("sweep complete")
	return report, nil
}

// authorized checks the cron bearer token on HTTP invocations.
func authorized(headers map[string]string, cronSecret string) bool {
	if cronSecret == "" {
		return false
	}
	auth := headers["authorization"]
	if auth == "" {
		auth = headers["Authorization"]
	}
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(cronSecret)) == 1
}
