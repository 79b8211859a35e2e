// internal/common/camunda/worker.go
package camunda

import (
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"personal-color-workers/internal/common/config"
	"personal-color-workers/internal/common/logger"
	"personal-color-workers/internal/common/metrics"
)

// JobHandler processes one activated job and completes, fails or throws it.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// CamundaWorker is one opened job worker subscription.
type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for taskType. Handler panics are recovered
// and logged so one bad job cannot take the process down; the job then
// times out and is retried by the engine.
func NewWorker(client zbc.Client, taskType string, cfg config.WorkerConfig, handler JobHandler, log logger.Logger) *CamundaWorker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})

	maxJobs := cfg.MaxJobsActive
	if maxJobs <= 0 {
		maxJobs = 5
	}
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Minute
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(Wrap(taskType, handler, log)).
		MaxJobsActive(maxJobs).
		Timeout(timeout).
		Name(fmt.Sprintf("%s-worker", taskType)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": maxJobs,
		"timeout":       timeout.String(),
	})

	return &CamundaWorker{
		worker:   jobWorker,
		logger:   log,
		taskType: taskType,
	}
}

// Wrap adapts a JobHandler to the Zeebe handler signature, tracking the
// active job gauge and recovering panics.
func Wrap(taskType string, handler JobHandler, log logger.Logger) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		active := metrics.WorkerJobsActive.WithLabelValues(taskType)
		active.Inc()
		defer active.Dec()

		defer func() {
			if r := recover(); r != nil {
				log.Error("handler panicked", map[string]interface{}{
					"jobKey": job.Key,
					"panic":  fmt.Sprint(r),
				})
			}
		}()

		handler.Handle(client, job)
	}
}

// Stop closes the subscription and waits for in-flight jobs.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
