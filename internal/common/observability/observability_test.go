package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"personal-color-workers/internal/common/errors"
)

func TestObservability_SpansAndMetrics(t *testing.T) {
	obs := New("personal-color-workers-test")
	t.Cleanup(obs.Shutdown)

	require.NoError(t, obs.EnableTracing(""))

	exporter := tracetest.NewInMemoryExporter()
	require.NoError(t, obs.enableTracing(sdktrace.WithSyncer(exporter)))

	ctx, span := obs.StartSpan(context.Background(), "analyze-color-parallel",
		attribute.String("jobKey", "42"))
	obs.RecordJobProcessed(ctx, "analyze-color-parallel", "completed")
	obs.RecordJobDuration(ctx, "analyze-color-parallel", 120*time.Millisecond, "completed")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "analyze-color-parallel", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.String("jobKey", "42"))
}

func TestObservability_FinishJob(t *testing.T) {
	reader := metric.NewManualReader()
	obs := newWithReader("personal-color-workers-test", reader)
	t.Cleanup(obs.Shutdown)

	exporter := tracetest.NewInMemoryExporter()
	require.NoError(t, obs.enableTracing(sdktrace.WithSyncer(exporter)))

	job := entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                7,
		Type:               "save-color-result",
		ProcessInstanceKey: 70,
		BpmnProcessId:      "personal-color-analysis",
		Retries:            3,
	}}

	started := time.Now()
	ctx, span := obs.StartJobSpan(context.Background(), job)
	obs.FinishJob(ctx, span, "save-color-result", started, nil)

	ctx, span = obs.StartJobSpan(context.Background(), job)
	obs.FinishJob(ctx, span, "save-color-result", started, errors.NewDatabaseInsertFailedError(fmt.Errorf("conn reset")))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "save-color-result", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.Int64("job.key", 7))
	assert.Contains(t, spans[0].Attributes, attribute.String("job.status", "completed"))
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Contains(t, spans[1].Attributes, attribute.String("job.status", string(errors.ErrCodeDatabaseInsertFailed)))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	var durations uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				require.Equal(t, "jobs.processed", m.Name)
				for _, dp := range data.DataPoints {
					status, _ := dp.Attributes.Value("status")
					counts[status.AsString()] += dp.Value
				}
			case metricdata.Histogram[float64]:
				require.Equal(t, "jobs.duration", m.Name)
				for _, dp := range data.DataPoints {
					durations += dp.Count
				}
			}
		}
	}
	assert.Equal(t, map[string]int64{"completed": 1, string(errors.ErrCodeDatabaseInsertFailed): 1}, counts)
	assert.Equal(t, uint64(2), durations)
}

func TestObservability_NilIsNoOp(t *testing.T) {
	var obs *Observability

	ctx, span := obs.StartSpan(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	assert.NotPanics(t, func() {
		obs.FinishJob(ctx, span, "recommend-products", time.Now(), fmt.Errorf("boom"))
	})
}
