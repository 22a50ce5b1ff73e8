package webhook

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"github.com/wangwalon/myname-world/internal/aws"
	"github.com/wangwalon/myname-world/internal/idempotency"
	"github.com/wangwalon/myname-world/internal/orders"
	"github.com/wangwalon/myname-world/internal/validation"
)

// maxBodyBytes caps the webhook payload read before signature verification.
const maxBodyBytes = 1 << 20

// HandlerConfig groups dependencies for the intake handler.
type HandlerConfig struct {
	DynamoDBClient aws.DynamoDBAPI
	SQSClient      aws.SQSAPI
	OrdersTable    string
	EventsTable    string
	QueueURL       string
	SigningSecret  string
	TTLWindow      time.Duration
}

// RegisterRoutes registers the Stripe intake endpoint.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	eventStore := idempotency.NewStore(cfg.DynamoDBClient, cfg.EventsTable, cfg.TTLWindow)
	orderStore := orders.NewStore(cfg.DynamoDBClient, cfg.OrdersTable)
	publisher := aws.NewPublisher(cfg.SQSClient, cfg.QueueURL)

	r.POST("/webhooks/stripe", func(c *gin.Context) {
		ctx := c.Request.Context()

		// the signature covers the exact bytes on the wire, so the body
		// must be read before any JSON decoding
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		payload, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
			return
		}

		sigHeader := c.GetHeader("Stripe-Signature")
		if sigHeader == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature"})
			return
		}

		event, err := stripewebhook.ConstructEventWithOptions(payload, sigHeader, cfg.SigningSecret,
			stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			log.Warn().Err(err).Msg("webhook signature verification failed")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature"})
			return
		}

		// only completed checkouts create work; everything else is acknowledged
		// so Stripe stops redelivering
		if event.Type != stripe.EventTypeCheckoutSessionCompleted {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("malformed checkout session payload, skipping")
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		data := validation.CheckoutData{
			SessionID: sess.ID,
			Email:     customerEmail(&sess),
			Name:      sess.Metadata["name"],
			Romaji:    sess.Metadata["romaji"],
		}
		if data.SessionID == "" {
			log.Warn().Str("event_id", event.ID).Msg("checkout session without id, skipping")
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		if err := v.Struct(data); err != nil {
			// malformed optional fields are tolerated; the renderer falls back
			// to placeholders and delivery is skipped without an address
			log.Warn().Err(err).Str("session_id", data.SessionID).Msg("checkout metadata failed validation, using placeholders")
			data.Email = ""
			data.Romaji = ""
		}

		logger := log.With().Str("event_id", event.ID).Str("session_id", data.SessionID).Logger()

		// Stripe redelivers until acknowledged; drop event ids we have fully
		// handled. A RECEIVED row means a previous attempt died before the
		// order write, so the retry must run the upsert again.
		created, err := eventStore.CreateIfNotExists(ctx, event.ID, data.SessionID)
		if err != nil {
			logger.Error().Err(err).Msg("event dedup check failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "dedup_check_failed"})
			return
		}
		if !created {
			rec, gerr := eventStore.Get(ctx, event.ID)
			if gerr != nil {
				logger.Error().Err(gerr).Msg("event dedup check failed")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "dedup_check_failed"})
				return
			}
			if rec == nil || rec.Status == idempotency.StatusProcessed {
				logger.Info().Msg("duplicate event delivery, already processed")
				c.JSON(http.StatusOK, gin.H{"received": true})
				return
			}
			logger.Info().Msg("retrying event recorded by an incomplete attempt")
		}

		note, enqueue, err := upsertOrder(c, orderStore, data)
		if err != nil {
			// the event row stays RECEIVED, so the retry re-runs the upsert
			logger.Error().Err(err).Msg("order upsert failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "order_upsert_failed"})
			return
		}

		if enqueue {
			correlationID := c.GetHeader("X-Request-Id")
			if correlationID == "" {
				correlationID = uuid.NewString()
			}
			msgPayload := map[string]string{
				"session_id":     data.SessionID,
				"correlation_id": correlationID,
			}
			payloadBytes, _ := json.Marshal(msgPayload)

			attrs := map[string]string{
				"session_id":     data.SessionID,
				"correlation_id": correlationID,
			}

			if err := publisher.SendRenderMessage(ctx, string(payloadBytes), attrs); err != nil {
				// the row exists, so acknowledge and let the sweeper re-enqueue
				logger.Error().Err(err).Msg("enqueue failed, leaving row for sweeper")
				_ = orderStore.MarkFailed(ctx, data.SessionID, fmt.Sprintf("enqueue_failed: %v", err))
				_ = eventStore.MarkProcessed(ctx, event.ID, "enqueue failed")
				c.JSON(http.StatusOK, gin.H{"received": true})
				return
			}
		}

		_ = eventStore.MarkProcessed(ctx, event.ID, note)
		logger.Info().Str("action", note).Msg("checkout event handled")
		c.JSON(http.StatusOK, gin.H{"received": true})
	})
}

// upsertOrder applies the intake state rule: create queued, skip terminal,
// reset failed, leave in-flight rows alone. Returns whether a render message
// should be enqueued.
func upsertOrder(c *gin.Context, store *orders.Store, data validation.CheckoutData) (note string, enqueue bool, err error) {
	ctx := c.Request.Context()

	created, err := store.CreateIfNotExists(ctx, orders.Order{
		SessionID: data.SessionID,
		Email:     data.Email,
		Name:      data.Name,
		Romaji:    data.Romaji,
		Status:    orders.StatusQueued,
	})
	if err != nil {
		return "", false, err
	}
	if created {
		return "order created", true, nil
	}

	existing, err := store.Get(ctx, data.SessionID)
	if err != nil {
		return "", false, err
	}
	if existing == nil {
		return "", false, fmt.Errorf("create failed but no row found for %s", data.SessionID)
	}

	switch existing.Status {
	case orders.StatusDelivered:
		// terminal: never reprocess
		return "skipped, already delivered", false, nil
	case orders.StatusFailed:
		if rerr := store.ResetForRetry(ctx, data.SessionID, orders.StatusFailed); rerr != nil {
			if rerr == orders.ErrStatusMismatch {
				// a concurrent writer moved the row; treat as in flight
				return "skipped, state changed concurrently", false, nil
			}
			return "", false, rerr
		}
		return "reset failed order for retry", true, nil
	default:
		// queued or processing: work is in flight, the sweeper handles staleness
		return "skipped, already in flight", false, nil
	}
}

func customerEmail(sess *stripe.CheckoutSession) string {
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		return sess.CustomerDetails.Email
	}
	return sess.CustomerEmail
}
