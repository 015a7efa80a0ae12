package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/executor"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/fallback"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/guard"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/ratelimit"
)

// Admission errors. A request refused with one of these never reached the
// executor and was not charged against the user's quota.
var (
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrUserBlocked     = errors.New("user is blocked")
	ErrServiceDisabled = errors.New("service is temporarily disabled")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrQuotaExceeded   = errors.New("daily quota exceeded")
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytbot_jobs_total",
		Help: "Finished jobs by kind and outcome.",
	}, []string{"kind", "outcome"})

	admissionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytbot_admission_rejections_total",
		Help: "Requests refused before a job was started.",
	}, []string{"reason"})

	tokenRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytbot_token_redemptions_total",
		Help: "Download token redemptions by outcome.",
	}, []string{"outcome"})
)

// QuotaLedger is the part of the quota ledger the orchestrator charges
type QuotaLedger interface {
	TryCharge(ctx context.Context, userID int64) bool
	Remaining(userID int64) int
}

// TokenService issues, redeems and revokes download tokens
type TokenService interface {
	Issue(ctx context.Context, userID int64) (model.DownloadToken, error)
	Redeem(ctx context.Context, value string, userID int64) bool
	Revoke(ctx context.Context, value string)
}

type Blocklist interface {
	IsBlocked(userID int64) bool
}

// Availability is the operator switch consulted after the blocklist
type Availability interface {
	Admits(userID int64) bool
}

type HistoryRecorder interface {
	Record(ctx context.Context, userID int64, e model.HistoryEntry)
}

// Deliverer hands a validated artifact to the user before the job directory
// is removed. It returns where the artifact can be fetched.
type Deliverer interface {
	Deliver(ctx context.Context, userID int64, res model.JobResult) (string, error)
}

// OrchestratorDeps wires the orchestrator's collaborators
type OrchestratorDeps struct {
	Limiter      ratelimit.Limiter
	Blocklist    Blocklist
	Availability Availability
	URLs         *guard.URLPolicy
	Quota        QuotaLedger
	Tokens       TokenService
	Executor     *executor.Executor
	Policy       *fallback.Policy
	History      HistoryRecorder
	Deliverer    Deliverer
	Validate     *validator.Validate
	WorkDir      string
	JobTimeout   time.Duration
}

// Orchestrator admits download requests and drives them through the executor
type Orchestrator struct {
	limiter      ratelimit.Limiter
	blocklist    Blocklist
	availability Availability
	urls         *guard.URLPolicy
	quota        QuotaLedger
	tokens       TokenService
	executor     *executor.Executor
	policy       *fallback.Policy
	history      HistoryRecorder
	deliverer    Deliverer
	validate     *validator.Validate
	workDir      string
	jobTimeout   time.Duration
	logger       *slog.Logger
}

func NewOrchestrator(deps OrchestratorDeps, logger *slog.Logger) *Orchestrator {
	validate := deps.Validate
	if validate == nil {
		validate = validator.New()
	}
	return &Orchestrator{
		limiter:      deps.Limiter,
		blocklist:    deps.Blocklist,
		availability: deps.Availability,
		urls:         deps.URLs,
		quota:        deps.Quota,
		tokens:       deps.Tokens,
		executor:     deps.Executor,
		policy:       deps.Policy,
		history:      deps.History,
		deliverer:    deps.Deliverer,
		validate:     validate,
		workDir:      deps.WorkDir,
		jobTimeout:   deps.JobTimeout,
		logger:       logger.With(slog.String("component", "orchestrator")),
	}
}

// DownloadVideoAuto fetches the best video that fits the size budget
func (o *Orchestrator) DownloadVideoAuto(ctx context.Context, userID int64, url string, d Deliverer) (model.JobResult, error) {
	req, err := o.admit(ctx, userID, url, model.MediaVideo, model.QualityAuto)
	if err != nil {
		return model.JobResult{}, err
	}

	return o.runJob(ctx, req, d, func(jobDir string) model.JobResult {
		return o.attempt(ctx, req, func(ctx context.Context) model.JobResult {
			return o.policy.Auto(ctx, req.URL, jobDir)
		})
	}), nil
}

// DownloadVideoQuality fetches the video at quality. When that rendition is
// rejected as too big, the lower rungs are tried in a second executor run
// with a token of its own.
func (o *Orchestrator) DownloadVideoQuality(ctx context.Context, userID int64, url string, quality model.Quality, d Deliverer) (model.JobResult, error) {
	if quality == model.QualityAuto {
		return model.JobResult{}, fmt.Errorf("%w: quality is required", ErrInvalidRequest)
	}
	req, err := o.admit(ctx, userID, url, model.MediaVideo, quality)
	if err != nil {
		return model.JobResult{}, err
	}

	return o.runJob(ctx, req, d, func(jobDir string) model.JobResult {
		res := o.attempt(ctx, req, func(ctx context.Context) model.JobResult {
			return o.policy.Exact(ctx, req.URL, req.Quality, jobDir)
		})
		if res.ErrorKind != model.ErrorFileTooBig {
			return res
		}

		o.logger.Info("requested quality too big, reducing",
			slog.String("job_id", req.ID),
			slog.String("quality", req.Quality.String()),
		)
		return o.attempt(ctx, req, func(ctx context.Context) model.JobResult {
			return o.policy.Reduce(ctx, req.URL, req.Quality, jobDir)
		})
	}), nil
}

// DownloadAudio extracts the audio track as mp3
func (o *Orchestrator) DownloadAudio(ctx context.Context, userID int64, url string, d Deliverer) (model.JobResult, error) {
	req, err := o.admit(ctx, userID, url, model.MediaAudio, model.QualityAuto)
	if err != nil {
		return model.JobResult{}, err
	}

	return o.runJob(ctx, req, d, func(jobDir string) model.JobResult {
		return o.attempt(ctx, req, func(ctx context.Context) model.JobResult {
			return o.policy.Audio(ctx, req.URL, jobDir)
		})
	}), nil
}

// admit applies the gates in order and charges one request on success
func (o *Orchestrator) admit(ctx context.Context, userID int64, url string, kind model.MediaKind, quality model.Quality) (model.JobRequest, error) {
	if !o.limiter.TryAcquire(userID) {
		admissionRejections.WithLabelValues("rate_limited").Inc()
		return model.JobRequest{}, ErrRateLimited
	}
	if o.blocklist != nil && o.blocklist.IsBlocked(userID) {
		admissionRejections.WithLabelValues("blocked").Inc()
		return model.JobRequest{}, ErrUserBlocked
	}
	if o.availability != nil && !o.availability.Admits(userID) {
		admissionRejections.WithLabelValues("disabled").Inc()
		return model.JobRequest{}, ErrServiceDisabled
	}

	req := model.JobRequest{
		ID:      uuid.New().String(),
		UserID:  userID,
		URL:     url,
		Kind:    kind,
		Quality: quality,
	}
	if err := o.validate.Struct(req); err != nil {
		admissionRejections.WithLabelValues("invalid").Inc()
		return model.JobRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := o.urls.Check(url); err != nil {
		admissionRejections.WithLabelValues("invalid").Inc()
		return model.JobRequest{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if !o.quota.TryCharge(ctx, userID) {
		admissionRejections.WithLabelValues("quota").Inc()
		return model.JobRequest{}, ErrQuotaExceeded
	}

	return req, nil
}

// runJob wraps execute with a private work directory, delivery and
// history. The work directory is gone when runJob returns.
func (o *Orchestrator) runJob(ctx context.Context, req model.JobRequest, d Deliverer, execute func(jobDir string) model.JobResult) model.JobResult {
	logger := o.logger.With(
		slog.String("job_id", req.ID),
		slog.Int64("user_id", req.UserID),
		slog.String("kind", string(req.Kind)),
	)

	res := o.execute(ctx, req, d, execute, logger)

	outcome := "success"
	if !res.Success {
		outcome = string(res.ErrorKind)
		logger.Warn("job failed",
			slog.String("error_kind", outcome),
			slog.String("detail", res.Detail),
		)
	} else {
		logger.Info("job completed",
			slog.String("quality", res.Quality),
			slog.Float64("size_mb", res.SizeMB),
			slog.Bool("quality_reduced", res.QualityReduced),
		)
	}
	jobsTotal.WithLabelValues(string(req.Kind), outcome).Inc()

	if o.history != nil {
		quality := res.Quality
		if quality == "" && req.Kind == model.MediaVideo {
			quality = req.Quality.String()
		}
		o.history.Record(ctx, req.UserID, model.HistoryEntry{
			Timestamp: time.Now(),
			URL:       req.URL,
			Title:     res.Title,
			Kind:      req.Kind,
			Quality:   quality,
			Success:   res.Success,
		})
	}
	return res
}

func (o *Orchestrator) execute(ctx context.Context, req model.JobRequest, d Deliverer, execute func(jobDir string) model.JobResult, logger *slog.Logger) model.JobResult {
	jobDir, err := os.MkdirTemp(o.workDir, "job-")
	if err != nil {
		out := model.Failure(model.ErrorUnknown)
		out.Detail = fmt.Sprintf("failed to create work dir: %v", err)
		return out
	}
	defer func() {
		if err := os.RemoveAll(jobDir); err != nil {
			logger.Error("failed to remove work dir", slog.String("error", err.Error()))
		}
	}()
	logger.Debug("job started", slog.String("work_dir", jobDir))

	res := execute(jobDir)
	if !res.Success {
		return res
	}

	if d == nil {
		d = o.deliverer
	}
	if d != nil {
		location, err := d.Deliver(ctx, req.UserID, res)
		if err != nil {
			out := model.Failure(model.ErrorDeliveryFailed)
			out.Detail = err.Error()
			return out
		}
		res.Location = location
	}

	res.ArtifactPath = ""
	return res
}

// attempt runs one executor pass. Its download token is issued once the slot
// is held and is gone when the pass ends: redeemed when the pass produced an
// artifact, revoked otherwise. A too_many_downloads refusal never issues one.
func (o *Orchestrator) attempt(ctx context.Context, req model.JobRequest, work executor.Work) model.JobResult {
	return o.executor.Run(ctx, req, o.jobTimeout, func(runCtx context.Context) model.JobResult {
		tok, err := o.tokens.Issue(ctx, req.UserID)
		if err != nil {
			out := model.Failure(model.ErrorUnknown)
			out.Detail = err.Error()
			return out
		}

		redeemed := false
		defer func() {
			if !redeemed {
				o.tokens.Revoke(ctx, tok.Value)
			}
		}()

		res := work(runCtx)
		if !res.Success {
			return res
		}

		redeemed = true
		if !o.tokens.Redeem(ctx, tok.Value, req.UserID) {
			tokenRedemptions.WithLabelValues("rejected").Inc()
			o.logger.Warn("download token rejected, artifact discarded",
				slog.String("job_id", req.ID),
			)
			return model.Failure(model.ErrorDeliveryUnauthorized)
		}
		tokenRedemptions.WithLabelValues("accepted").Inc()
		return res
	})
}
