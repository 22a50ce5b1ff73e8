package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wangwalon/myname-world/internal/metrics"
	"github.com/wangwalon/myname-world/internal/orders"
)

// ImageRenderer produces the personalized PNG for an order. Implemented by
// the in-process renderer and the external render-service client.
type ImageRenderer interface {
	Render(ctx context.Context, sessionID, name, romaji string) ([]byte, error)
}

// Uploader stores the rendered image and returns its public URL.
type Uploader interface {
	UploadPNG(ctx context.Context, sessionID string, data []byte) (string, error)
}

// Mailer delivers the download link to the customer.
type Mailer interface {
	SendDownloadLink(ctx context.Context, to, name, pngURL string) error
}

// Processor handles SQS messages and performs the fulfillment lifecycle:
// claim -> render -> upload -> email -> delivered (or failed).
type Processor struct {
	orderStore *orders.Store
	renderer   ImageRenderer
	uploader   Uploader
	mailer     Mailer
	recorder   *metrics.Recorder
}

// NewProcessor creates a worker processor with its dependencies injected.
func NewProcessor(store *orders.Store, renderer ImageRenderer, uploader Uploader, mailer Mailer, recorder *metrics.Recorder) *Processor {
	return &Processor{
		orderStore: store,
		renderer:   renderer,
		uploader:   uploader,
		mailer:     mailer,
		recorder:   recorder,
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry. If failed too many times, message goes to DLQ.
			log.Error().Err(err).Msg("worker error")
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg WorkerMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	logger := log.With().Str("session_id", msg.SessionID).Str("correlation_id", msg.CorrelationID).Logger()
	logger.Info().Msg("received render job")

	// Step 1: Read the current order
	order, err := p.orderStore.Get(ctx, msg.SessionID)
	if err != nil {
		return fmt.Errorf("failed to fetch order: %w", err)
	}
	if order == nil {
		// no row to work on; let the message go to the DLQ
		return fmt.Errorf("order not found: %s", msg.SessionID)
	}

	// Step 2: claim queued -> processing (idempotent)
	err = p.orderStore.UpdateStatus(ctx, msg.SessionID, orders.StatusQueued, orders.StatusProcessing)
	if err == orders.ErrStatusMismatch {
		o2, gerr := p.orderStore.Get(ctx, msg.SessionID)
		if gerr != nil || o2 == nil {
			return fmt.Errorf("failed to re-read order %s after claim mismatch: %v", msg.SessionID, gerr)
		}
		switch o2.Status {
		case orders.StatusDelivered:
			logger.Info().Msg("already delivered, dropping duplicate")
			return nil
		case orders.StatusProcessing:
			// another worker took it; swallow the duplicate message
			logger.Info().Msg("duplicate render job, another worker is on it")
			return nil
		case orders.StatusFailed:
			// re-enqueued before the sweeper reset the row; reset and claim
			if rerr := p.orderStore.ResetForRetry(ctx, msg.SessionID, orders.StatusFailed); rerr != nil {
				logger.Info().Msg("failed order changed state concurrently, dropping")
				return nil
			}
			if cerr := p.orderStore.UpdateStatus(ctx, msg.SessionID, orders.StatusQueued, orders.StatusProcessing); cerr != nil {
				logger.Info().Msg("lost the claim after reset, dropping")
				return nil
			}
		default:
			return fmt.Errorf("unexpected status for order=%s: %s", msg.SessionID, o2.Status)
		}
	} else if err != nil {
		return fmt.Errorf("failed to update status to processing: %w", err)
	}

	if err := p.orderStore.IncrementAttempts(ctx, msg.SessionID); err != nil {
		logger.Warn().Err(err).Msg("failed to increment attempts")
	}

	// Steps 3-4: render and upload, unless an earlier attempt already got the
	// image out and only the email is left
	pngURL := order.PNGURL
	if pngURL == "" {
		png, err := p.renderer.Render(ctx, order.SessionID, order.Name, order.Romaji)
		if err != nil {
			return p.fail(ctx, logger, order.SessionID, fmt.Sprintf("render: %v", err), "")
		}

		pngURL, err = p.uploader.UploadPNG(ctx, order.SessionID, png)
		if err != nil {
			return p.fail(ctx, logger, order.SessionID, fmt.Sprintf("upload: %v", err), "")
		}
	} else {
		logger.Info().Msg("image already uploaded, skipping render")
	}

	// Step 5: email the download link when we have an address
	if order.Email != "" {
		if err := p.mailer.SendDownloadLink(ctx, order.Email, order.Name, pngURL); err != nil {
			return p.fail(ctx, logger, order.SessionID, fmt.Sprintf("email: %v", err), pngURL)
		}
	} else {
		logger.Warn().Msg("no email on order, skipping delivery mail")
	}

	// Step 6: processing -> delivered
	err = p.orderStore.MarkDelivered(ctx, order.SessionID, pngURL)
	if err == orders.ErrStatusMismatch {
		logger.Info().Msg("order left processing concurrently, dropping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark delivered: %w", err)
	}

	p.recorder.Count(ctx, metrics.MetricDelivered)
	logger.Info().Str("png_url", pngURL).Msg("order delivered")
	return nil
}

// fail records the row-level failure and acknowledges the message: retries go
// through the sweeper, not through SQS redelivery. A non-empty pngURL is kept
// on the row so the retry does not redo render and upload.
func (p *Processor) fail(ctx context.Context, logger zerolog.Logger, sessionID, reason, pngURL string) error {
	logger.Error().Str("reason", reason).Msg("fulfillment step failed")
	var err error
	if pngURL != "" {
		err = p.orderStore.MarkFailedWithAsset(ctx, sessionID, reason, pngURL)
	} else {
		err = p.orderStore.MarkFailed(ctx, sessionID, reason)
	}
	if err != nil {
		// could not record the failure; let SQS redeliver
		return fmt.Errorf("failed to mark order failed: %w", err)
	}
	p.recorder.Count(ctx, metrics.MetricFailed)
	return nil
}
