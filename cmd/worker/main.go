package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/wangwalon/myname-world/internal/aws"
	"github.com/wangwalon/myname-world/internal/config"
	"github.com/wangwalon/myname-world/internal/mailer"
	"github.com/wangwalon/myname-world/internal/metrics"
	"github.com/wangwalon/myname-world/internal/orders"
	"github.com/wangwalon/myname-world/internal/render"
	"github.com/wangwalon/myname-world/internal/storage"
)

func buildProcessor(ctx context.Context) (*Processor, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Require(map[string]string{
		"ORDERS_TABLE":   cfg.OrdersTable,
		"RENDERS_BUCKET": cfg.RendersBucket,
		"EMAIL_FROM":     cfg.EmailFrom,
	}); err != nil {
		return nil, err
	}

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		return nil, err
	}

	var renderer ImageRenderer
	if cfg.RenderServiceURL != "" {
		renderer = render.NewClient(cfg.RenderServiceURL, cfg.RenderServiceToken)
	} else {
		renderer = render.NewRenderer(cfg.FontPathPrimary, cfg.FontPathSecondary)
	}

	return NewProcessor(
		orders.NewStore(clients.DynamoDB, cfg.OrdersTable),
		renderer,
		storage.NewUploader(clients.S3, cfg.RendersBucket, cfg.PublicBaseURL),
		mailer.NewMailer(clients.SES, cfg.EmailFrom),
		metrics.NewRecorder(clients.CloudWatch),
	), nil
}

func main() {
	ctx := context.Background()

	p, err := buildProcessor(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build worker")
	}

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if os.Getenv("RUN_LOCAL") == "true" {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"session_id":"cs_local_1"}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{Body: testBody},
			},
		}
		if err := p.Handle(ctx, event); err != nil {
			log.Fatal().Err(err).Msg("local handler error")
		}
		return
	}

	lambda.Start(p.Handle)
}
