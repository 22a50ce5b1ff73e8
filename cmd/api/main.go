package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/wangwalon/myname-world/internal/aws"
	"github.com/wangwalon/myname-world/internal/config"
	"github.com/wangwalon/myname-world/internal/webhook"
)

func setupRouter(cfg webhook.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	webhook.RegisterRoutes(r, cfg)

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := config.Require(map[string]string{
		"ORDERS_TABLE":          cfg.OrdersTable,
		"EVENTS_TABLE":          cfg.EventsTable,
		"ORDERS_QUEUE_URL":      cfg.QueueURL,
		"STRIPE_WEBHOOK_SECRET": cfg.StripeWebhookSecret,
	}); err != nil {
		log.Fatal().Err(err).Msg("incomplete environment")
	}

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init aws clients")
	}

	handlerCfg := webhook.HandlerConfig{
		DynamoDBClient: clients.DynamoDB,
		SQSClient:      clients.SQS,
		OrdersTable:    cfg.OrdersTable,
		EventsTable:    cfg.EventsTable,
		QueueURL:       cfg.QueueURL,
		SigningSecret:  cfg.StripeWebhookSecret,
		TTLWindow:      48 * time.Hour,
	}

	r := setupRouter(handlerCfg)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":8080"
		log.Info().Str("addr", addr).Msg("running local server")
		if err := r.Run(addr); err != nil {
			log.Fatal().Err(err).Msg("failed to run local server")
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		// the adapter handles proxying; use adapter.ProxyWithContext for proper context propagation
		return adapter.ProxyWithContext(ctx, req)
	})
}
