package metrics

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/rs/zerolog/log"
	"github.com/wangwalon/myname-world/internal/aws"
)

const namespace = "MynameWorld/Fulfillment"

// Metric names emitted per terminal worker outcome.
const (
	MetricDelivered = "OrdersDelivered"
	MetricFailed    = "OrdersFailed"
	MetricSwept     = "OrdersSwept"
)

// Recorder publishes fulfillment outcome counts to CloudWatch. Emission is
// best-effort: a metrics failure must never fail an order.
type Recorder struct {
	client aws.CloudWatchAPI
}

// NewRecorder returns a Recorder. A nil client disables emission (local runs).
func NewRecorder(client aws.CloudWatchAPI) *Recorder {
	return &Recorder{client: client}
}

// Count emits a count-of-one datum for the metric.
func (r *Recorder) Count(ctx context.Context, metricName string) {
	if r == nil || r.client == nil {
		return
	}

	name := metricName
	ns := namespace
	value := float64(1)

	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &ns,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: &name,
				Value:      &value,
				Unit:       cwtypes.StandardUnitCount,
			},
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("metric", metricName).Msg("failed to put metric data")
	}
}
