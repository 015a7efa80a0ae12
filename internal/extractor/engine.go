// Package extractor is the boundary to the media extraction engine.
package extractor

import (
	"context"
	"errors"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
)

// ErrNoOutput is returned when the engine exits cleanly without leaving a file.
var ErrNoOutput = errors.New("engine produced no output file")

// Target describes the artifact a single Download call should produce
type Target struct {
	Kind         model.MediaKind
	Height       model.Quality
	AudioCodec   string
	AudioQuality string
}

// VideoTarget selects the best stream not taller than height
func VideoTarget(height model.Quality) Target {
	return Target{Kind: model.MediaVideo, Height: height}
}

// AudioTarget extracts the best audio stream as mp3 at 192 kbps
func AudioTarget() Target {
	return Target{Kind: model.MediaAudio, AudioCodec: "mp3", AudioQuality: "192K"}
}

// Download is what the engine left on disk
type Download struct {
	Path  string
	Title string
}

// Engine fetches media. Implementations must stop all work when ctx is done.
type Engine interface {
	ExtractInfo(ctx context.Context, url string) (*model.MediaInfo, error)
	Download(ctx context.Context, url string, target Target, outDir string) (*Download, error)
}
