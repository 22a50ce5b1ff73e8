package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

type mockCloudWatch struct {
	calls []*cloudwatch.PutMetricDataInput
	err   error
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	return &cloudwatch.PutMetricDataOutput{}, m.err
}

func TestCount(t *testing.T) {
	mock := &mockCloudWatch{}
	r := NewRecorder(mock)

	r.Count(context.Background(), MetricDelivered)

	if len(mock.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(mock.calls))
	}
	in := mock.calls[0]
	if *in.Namespace != namespace {
		t.Fatalf("unexpected namespace: %s", *in.Namespace)
	}
	if *in.MetricData[0].MetricName != MetricDelivered {
		t.Fatalf("unexpected metric: %s", *in.MetricData[0].MetricName)
	}
	if *in.MetricData[0].Value != 1 {
		t.Fatalf("unexpected value: %f", *in.MetricData[0].Value)
	}
}

func TestCount_NilClientIsNoop(t *testing.T) {
	r := NewRecorder(nil)
	// must not panic
	r.Count(context.Background(), MetricFailed)
}

func TestCount_EmitFailureIsSwallowed(t *testing.T) {
	mock := &mockCloudWatch{err: errors.New("throttled")}
	r := NewRecorder(mock)
	// best-effort: no panic, no propagation
	r.Count(context.Background(), MetricFailed)
}
