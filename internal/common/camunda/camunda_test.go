package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"personal-color-workers/internal/common/config"
	"personal-color-workers/internal/common/logger"
	"personal-color-workers/internal/common/metrics"
)

// ==========================
// Retry Tests
// ==========================

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("rpc error: code = Unavailable desc = connection refused"), true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("dial tcp: lookup zeebe: no such host"), true},
		{errors.New("permission denied"), false},
		{errors.New("NOT_FOUND: process definition"), false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRetry(t *testing.T) {
	rc := &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	log := logger.NewTestLogger(t)

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), rc, log, "op", func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), rc, log, "op", func(context.Context) error {
			calls++
			return errors.New("permission denied")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after budget", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), rc, log, "op", func(context.Context) error {
			calls++
			return errors.New("unavailable")
		})
		assert.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := &RetryConfig{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: time.Second}
		err := Retry(ctx, slow, log, "op", func(context.Context) error {
			cancel()
			return errors.New("unavailable")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", RequestTimeout: 3000})
	assert.Equal(t, "zeebe:26500", cfg.GatewayAddress)
	assert.Equal(t, 3*time.Second, cfg.ConnectionTimeout)

	cfg = ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500"})
	assert.Equal(t, 10*time.Second, cfg.ConnectionTimeout)
}

// ==========================
// Worker Wrapper Tests
// ==========================

type handlerFunc func(worker.JobClient, entities.Job)

func (f handlerFunc) Handle(client worker.JobClient, job entities.Job) { f(client, job) }

func TestWrap(t *testing.T) {
	log := logger.NewTestLogger(t)
	job := entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 7}}

	var seen int64
	wrapped := Wrap("wrap-test", handlerFunc(func(_ worker.JobClient, j entities.Job) {
		seen = j.Key
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WorkerJobsActive.WithLabelValues("wrap-test")))
	}), log)

	wrapped(nil, job)
	assert.Equal(t, int64(7), seen)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.WorkerJobsActive.WithLabelValues("wrap-test")))

	panicking := Wrap("wrap-test", handlerFunc(func(worker.JobClient, entities.Job) {
		panic("boom")
	}), log)
	assert.NotPanics(t, func() { panicking(nil, job) })
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.WorkerJobsActive.WithLabelValues("wrap-test")))
}
