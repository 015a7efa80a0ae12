// Package executor runs one extraction job under a concurrency slot and a
// hard deadline.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/admission"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
)

var (
	activeJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ytbot_active_jobs",
		Help: "Jobs currently holding a concurrency slot.",
	})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ytbot_job_duration_seconds",
		Help:    "Wall time of executor runs by outcome.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"outcome"})
)

// Work is the body of a job. It must return promptly once ctx is done.
type Work func(ctx context.Context) model.JobResult

// Executor isolates each job in its own goroutine. The engine itself runs
// as a child process bound to the job context.
type Executor struct {
	slots     *admission.Controller
	killGrace time.Duration
	logger    *slog.Logger
}

func NewExecutor(slots *admission.Controller, killGrace time.Duration, logger *slog.Logger) *Executor {
	return &Executor{
		slots:     slots,
		killGrace: killGrace,
		logger:    logger.With(slog.String("component", "executor")),
	}
}

// Run takes a slot, runs work with a deadline of timeout and returns its
// result. Without a free slot it returns too_many_downloads and does not
// start work. The slot is released on every return path.
func (e *Executor) Run(ctx context.Context, req model.JobRequest, timeout time.Duration, work Work) model.JobResult {
	release, ok := e.slots.Acquire()
	if !ok {
		return model.Failure(model.ErrorTooManyDownloads)
	}
	defer release()

	activeJobs.Inc()
	defer activeJobs.Dec()

	start := time.Now()
	res := e.run(ctx, req, timeout, work)

	outcome := "success"
	if !res.Success {
		outcome = string(res.ErrorKind)
	}
	jobDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return res
}

func (e *Executor) run(ctx context.Context, req model.JobRequest, timeout time.Duration, work Work) model.JobResult {
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan model.JobResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("job panicked",
					slog.String("job_id", req.ID),
					slog.String("panic", fmt.Sprint(r)),
				)
				done <- model.Failure(model.ErrorUnknown)
			}
		}()
		done <- work(jobCtx)
	}()

	select {
	case res := <-done:
		if !res.Success && errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			return model.Failure(model.ErrorTimeout)
		}
		return res
	case <-jobCtx.Done():
	}

	cancel()
	select {
	case <-done:
	case <-time.After(e.killGrace):
		e.logger.Warn("job did not stop within kill grace", slog.String("job_id", req.ID))
	}

	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		e.logger.Warn("job timed out",
			slog.String("job_id", req.ID),
			slog.Int64("user_id", req.UserID),
			slog.Duration("timeout", timeout),
		)
		return model.Failure(model.ErrorTimeout)
	}
	e.logger.Warn("job cancelled", slog.String("job_id", req.ID))
	return model.Failure(model.ErrorUnknown)
}
