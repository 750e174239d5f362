package aws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/waggishPlayer/hot-wax/internal/gateway"
)

// Metric names published per backend call.
const (
	MetricCalls   = "GatewayCalls"
	MetricLatency = "GatewayLatency"
)

const maxDatumsPerPut = 20

// MetricsRecorder buffers gateway call stats and ships them to CloudWatch on
// Flush. It implements gateway.Observer.
type MetricsRecorder struct {
	cw        CloudWatchAPI
	namespace string
	nowFunc   func() time.Time

	mu      sync.Mutex
	pending []cwtypes.MetricDatum
}

// NewMetricsRecorder returns a recorder publishing under namespace.
func NewMetricsRecorder(cw CloudWatchAPI, namespace string) *MetricsRecorder {
	return &MetricsRecorder{
		cw:        cw,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// ObserveCall records one count and one latency datum for the call.
func (m *MetricsRecorder) ObserveCall(s gateway.CallStat) {
	now := m.nowFunc()
	dims := []cwtypes.Dimension{
		{Name: sdkaws.String("Route"), Value: sdkaws.String(s.Route)},
		{Name: sdkaws.String("Method"), Value: sdkaws.String(s.Method)},
		{Name: sdkaws.String("Outcome"), Value: sdkaws.String(s.Outcome)},
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending,
		cwtypes.MetricDatum{
			MetricName: sdkaws.String(MetricCalls),
			Dimensions: dims,
			Timestamp:  sdkaws.Time(now),
			Unit:       cwtypes.StandardUnitCount,
			Value:      sdkaws.Float64(1),
		},
		cwtypes.MetricDatum{
			MetricName: sdkaws.String(MetricLatency),
			Dimensions: dims,
			Timestamp:  sdkaws.Time(now),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Value:      sdkaws.Float64(float64(s.Duration) / float64(time.Millisecond)),
		},
	)
}

// Pending reports how many datums wait for the next Flush.
func (m *MetricsRecorder) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Flush sends everything buffered so far. Datums of a failed put are dropped.
func (m *MetricsRecorder) Flush(ctx context.Context) error {
	m.mu.Lock()
	batch := m.pending
	m.pending = nil
	m.mu.Unlock()

	for start := 0; start < len(batch); start += maxDatumsPerPut {
		end := start + maxDatumsPerPut
		if end > len(batch) {
			end = len(batch)
		}
		_, err := m.cw.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  &m.namespace,
			MetricData: batch[start:end],
		})
		if err != nil {
			slog.Warn("metrics dropped", "count", len(batch)-start, "error", err)
			return fmt.Errorf("put metric data: %w", err)
		}
	}
	return nil
}
