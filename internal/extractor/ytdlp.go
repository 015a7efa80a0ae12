package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
)

// YtDlp runs one yt-dlp process per call. The process is bound to the call's
// context, so cancelling the context kills it.
type YtDlp struct {
	binary string
	logger *slog.Logger
}

// NewYtDlp uses binary when set, otherwise yt-dlp from PATH
func NewYtDlp(binary string, logger *slog.Logger) *YtDlp {
	return &YtDlp{
		binary: binary,
		logger: logger.With(slog.String("component", "ytdlp")),
	}
}

// Install downloads a yt-dlp release into the user cache when none is found
func Install(ctx context.Context) error {
	if _, err := ytdlp.Install(ctx, nil); err != nil {
		return fmt.Errorf("failed to install yt-dlp: %w", err)
	}
	return nil
}

func (y *YtDlp) command() *ytdlp.Command {
	cmd := ytdlp.New().
		NoPlaylist().
		Quiet().
		NoWarnings()
	if y.binary != "" {
		cmd.SetExecutable(y.binary)
	}
	return cmd
}

// ExtractInfo reads metadata without downloading
func (y *YtDlp) ExtractInfo(ctx context.Context, url string) (*model.MediaInfo, error) {
	res, err := y.command().
		SkipDownload().
		PrintJSON().
		Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to extract info: %w", err)
	}

	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to parse info: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("failed to extract info: empty response")
	}

	return mediaInfo(infos[0]), nil
}

// maxDescription is how many characters of the description are kept
const maxDescription = 200

func mediaInfo(info *ytdlp.ExtractedInfo) *model.MediaInfo {
	out := &model.MediaInfo{}
	if info.Title != nil {
		out.Title = *info.Title
	}
	if info.Uploader != nil {
		out.Uploader = *info.Uploader
	}
	if info.Duration != nil {
		out.Duration = time.Duration(*info.Duration * float64(time.Second))
	}
	if info.ViewCount != nil {
		out.Views = int64(*info.ViewCount)
	}
	if info.UploadDate != nil {
		out.UploadDate = *info.UploadDate
	}
	if info.Description != nil {
		out.Description = truncate(*info.Description, maxDescription)
	}
	if info.Thumbnail != nil {
		out.Thumbnail = *info.Thumbnail
	}
	return out
}

// truncate cuts s to n runes and marks the cut with an ellipsis
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Download fetches url into outDir according to target
func (y *YtDlp) Download(ctx context.Context, url string, target Target, outDir string) (*Download, error) {
	cmd := y.command().
		RestrictFilenames().
		NoOverwrites().
		PrintJSON()

	switch target.Kind {
	case model.MediaAudio:
		cmd.Format("bestaudio/best").
			ExtractAudio().
			AudioFormat(target.AudioCodec).
			AudioQuality(target.AudioQuality).
			Output(filepath.Join(outDir, "audio.%(ext)s"))
	default:
		cmd.Format(fmt.Sprintf("best[height<=%d]", int(target.Height))).
			Output(filepath.Join(outDir, fmt.Sprintf("video_%s.%%(ext)s", target.Height)))
	}

	y.logger.Debug("starting yt-dlp",
		slog.String("kind", string(target.Kind)),
		slog.String("quality", target.Height.String()),
		slog.String("out_dir", outDir),
	)

	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp failed: %w", err)
	}

	path, err := findOutput(outDir)
	if err != nil {
		return nil, err
	}

	dl := &Download{Path: path}
	if infos, err := res.GetExtractedInfo(); err == nil && len(infos) > 0 && infos[0].Title != nil {
		dl.Title = *infos[0].Title
	}
	return dl, nil
}

// findOutput returns the single finished file in dir, skipping partial and
// temporary files yt-dlp leaves behind
func findOutput(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read output dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || isPartial(e.Name()) {
			continue
		}
		return filepath.Join(dir, e.Name()), nil
	}
	return "", ErrNoOutput
}

func isPartial(name string) bool {
	switch {
	case strings.HasSuffix(name, ".part"),
		strings.HasSuffix(name, ".ytdl"),
		strings.HasSuffix(name, ".temp"),
		strings.HasSuffix(name, ".json"),
		strings.Contains(name, ".part-Frag"),
		strings.HasPrefix(name, "."):
		return true
	}
	return false
}
