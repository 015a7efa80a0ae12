// Package fallback walks the quality ladder until an artifact passes
// validation.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/artifact"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/extractor"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
)

var attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ytbot_fallback_attempts_total",
	Help: "Extraction attempts per quality rung and outcome.",
}, []string{"quality", "outcome"})

// Ladder lists video heights from best to worst
var Ladder = []model.Quality{
	model.Quality1080p,
	model.Quality720p,
	model.Quality480p,
	model.Quality360p,
	model.Quality240p,
}

// Below returns the rungs strictly lower than q. A height that is not on the
// ladder yields the rungs lower than it in value.
func Below(q model.Quality) []model.Quality {
	for i, rung := range Ladder {
		if rung < q {
			return Ladder[i:len(Ladder):len(Ladder)]
		}
	}
	return nil
}

// Policy turns one job into a sequence of engine attempts
type Policy struct {
	engine    extractor.Engine
	validator *artifact.Validator
	logger    *slog.Logger
}

func NewPolicy(engine extractor.Engine, validator *artifact.Validator, logger *slog.Logger) *Policy {
	return &Policy{
		engine:    engine,
		validator: validator,
		logger:    logger.With(slog.String("component", "fallback")),
	}
}

// Auto tries every rung from the top and returns the first artifact that
// passes validation.
func (p *Policy) Auto(ctx context.Context, url, jobDir string) model.JobResult {
	for _, q := range Ladder {
		if ctx.Err() != nil {
			break
		}
		res, err := p.attempt(ctx, url, extractor.VideoTarget(q), jobDir)
		if err == nil {
			return res
		}
		p.logger.Info("rung rejected", slog.String("quality", q.String()), slog.String("error", err.Error()))
	}
	return model.Failure(model.ErrorNoSuitableQuality)
}

// Exact makes a single attempt at q. A rejected artifact is reported as
// file_too_big whatever the failed check, so the caller can start reduction.
func (p *Policy) Exact(ctx context.Context, url string, q model.Quality, jobDir string) model.JobResult {
	res, err := p.attempt(ctx, url, extractor.VideoTarget(q), jobDir)
	if err == nil {
		return res
	}

	var rejected *rejectedError
	if errors.As(err, &rejected) {
		return model.Failure(model.ErrorFileTooBig)
	}
	out := model.Failure(model.ErrorExtractionFailed)
	out.Detail = err.Error()
	return out
}

// Reduce walks the rungs below q. A success is marked as reduced from q.
func (p *Policy) Reduce(ctx context.Context, url string, q model.Quality, jobDir string) model.JobResult {
	for _, lower := range Below(q) {
		if ctx.Err() != nil {
			break
		}
		res, err := p.attempt(ctx, url, extractor.VideoTarget(lower), jobDir)
		if err == nil {
			res.QualityReduced = true
			res.OriginalQuality = q.String()
			res.ReducedQuality = lower.String()
			return res
		}
		p.logger.Info("reduced rung rejected", slog.String("quality", lower.String()), slog.String("error", err.Error()))
	}
	return model.Failure(model.ErrorNoSuitableQuality)
}

// Audio makes a single mp3 attempt
func (p *Policy) Audio(ctx context.Context, url, jobDir string) model.JobResult {
	res, err := p.attempt(ctx, url, extractor.AudioTarget(), jobDir)
	if err == nil {
		return res
	}

	var rejected *rejectedError
	if errors.As(err, &rejected) {
		return model.Failure(model.ErrorAudioTooBig)
	}
	out := model.Failure(model.ErrorExtractionFailed)
	out.Detail = err.Error()
	return out
}

// rejectedError marks an artifact that was produced but failed validation
type rejectedError struct{ err error }

func (e *rejectedError) Error() string { return e.err.Error() }
func (e *rejectedError) Unwrap() error { return e.err }

// attempt runs the engine into a fresh sub-directory of jobDir and validates
// the result. The sub-directory is removed when the attempt fails.
func (p *Policy) attempt(ctx context.Context, url string, target extractor.Target, jobDir string) (model.JobResult, error) {
	label := string(target.Kind)
	if target.Kind == model.MediaVideo {
		label = target.Height.String()
	}

	dir := filepath.Join(jobDir, label)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.JobResult{}, fmt.Errorf("failed to create attempt dir: %w", err)
	}

	dl, err := p.engine.Download(ctx, url, target, dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		attemptsTotal.WithLabelValues(label, "engine_error").Inc()
		return model.JobResult{}, err
	}

	a, err := p.validator.Inspect(dl.Path, target.Kind)
	if err != nil {
		_ = os.RemoveAll(dir)
		attemptsTotal.WithLabelValues(label, "rejected").Inc()
		return model.JobResult{}, &rejectedError{err: err}
	}

	attemptsTotal.WithLabelValues(label, "accepted").Inc()
	quality := label
	if target.Kind == model.MediaAudio {
		quality = target.AudioCodec + " " + target.AudioQuality
	}
	return model.JobResult{
		Success:      true,
		ArtifactPath: a.Path,
		Title:        dl.Title,
		Quality:      quality,
		SizeMB:       a.SizeMB,
		Hash:         a.Hash,
	}, nil
}
