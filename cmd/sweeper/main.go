package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/wangwalon/myname-world/internal/aws"
	"github.com/wangwalon/myname-world/internal/config"
	"github.com/wangwalon/myname-world/internal/metrics"
	"github.com/wangwalon/myname-world/internal/orders"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := config.Require(map[string]string{
		"ORDERS_TABLE":     cfg.OrdersTable,
		"ORDERS_QUEUE_URL": cfg.QueueURL,
		"CRON_SECRET":      cfg.CronSecret,
	}); err != nil {
		log.Fatal().Err(err).Msg("incomplete environment")
	}

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init aws clients")
	}

	sweeper := NewSweeper(
		orders.NewStore(clients.DynamoDB, cfg.OrdersTable),
		aws.NewPublisher(clients.SQS, cfg.QueueURL),
		metrics.NewRecorder(clients.CloudWatch),
		cfg.SweepBatchSize,
		cfg.ProcessingStaleAfter,
	)

	// RUN_LOCAL=true runs a single sweep without the HTTP gate.
	if os.Getenv("RUN_LOCAL") == "true" {
		report, err := sweeper.Sweep(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("sweep failed")
		}
		log.Info().Interface("report", report).Msg("local sweep done")
		return
	}

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		if !authorized(req.Headers, cfg.CronSecret) {
			return &events.APIGatewayProxyResponse{
				StatusCode: 401,
				Body:       `{"error":"unauthorized"}`,
			}, nil
		}

		report, err := sweeper.Sweep(ctx)
		if err != nil {
			log.Error().Err(err).Msg("sweep failed")
			return &events.APIGatewayProxyResponse{
				StatusCode: 500,
				Body:       `{"error":"sweep_failed"}`,
			}, nil
		}

		body, _ := json.Marshal(report)
		return &events.APIGatewayProxyResponse{
			StatusCode: 200,
			Body:       string(body),
		}, nil
	})
}
