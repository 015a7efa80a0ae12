package fallback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/artifact"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/extractor"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
)

const kb = 1024

// fakeEngine writes a file of sizes[height] bytes, or fails for heights in errs
type fakeEngine struct {
	mu        sync.Mutex
	sizes     map[model.Quality]int
	audioSize int
	errs      map[model.Quality]error
	ext       string
	heights   []model.Quality
}

func (f *fakeEngine) ExtractInfo(context.Context, string) (*model.MediaInfo, error) {
	return &model.MediaInfo{Title: "clip"}, nil
}

func (f *fakeEngine) Download(_ context.Context, _ string, target extractor.Target, outDir string) (*extractor.Download, error) {
	if target.Kind == model.MediaAudio {
		path := filepath.Join(outDir, "audio.mp3")
		if err := os.WriteFile(path, make([]byte, f.audioSize), 0o644); err != nil {
			return nil, err
		}
		return &extractor.Download{Path: path, Title: "song"}, nil
	}

	f.mu.Lock()
	f.heights = append(f.heights, target.Height)
	f.mu.Unlock()

	if err := f.errs[target.Height]; err != nil {
		return nil, err
	}
	ext := f.ext
	if ext == "" {
		ext = "mp4"
	}
	path := filepath.Join(outDir, fmt.Sprintf("video_%s.%s", target.Height, ext))
	if err := os.WriteFile(path, make([]byte, f.sizes[target.Height]), 0o644); err != nil {
		return nil, err
	}
	return &extractor.Download{Path: path, Title: "clip"}, nil
}

// newTestPolicy accepts files up to 10 KiB
func newTestPolicy(engine extractor.Engine) *Policy {
	v := artifact.NewValidator(100, 10.0/1024)
	return NewPolicy(engine, v, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBelow(t *testing.T) {
	tests := []struct {
		q    model.Quality
		want []model.Quality
	}{
		{1080, []model.Quality{720, 480, 360, 240}},
		{720, []model.Quality{480, 360, 240}},
		{240, nil},
		{600, []model.Quality{480, 360, 240}},
	}
	for _, tt := range tests {
		got := Below(tt.q)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Below(%d) = %v, want %v", tt.q, got, tt.want)
		}
	}
}

func TestBelow_CannotReachRequestedRung(t *testing.T) {
	got := Below(720)
	got = append(got, 720)
	if Ladder[1] != 720 || len(Ladder) != 5 {
		t.Fatal("appending to Below must not alias the ladder")
	}
	for _, q := range Below(720) {
		if q >= 720 {
			t.Errorf("rung %d is not below 720", q)
		}
	}
}

func TestAuto_SkipsOversizedRungs(t *testing.T) {
	engine := &fakeEngine{sizes: map[model.Quality]int{1080: 40 * kb, 720: 20 * kb, 480: 5 * kb}}
	p := newTestPolicy(engine)

	res := p.Auto(context.Background(), "https://youtu.be/x", t.TempDir())
	if !res.Success {
		t.Fatalf("expected success, got %s", res.ErrorKind)
	}
	if res.Quality != "480p" {
		t.Errorf("expected 480p, got %s", res.Quality)
	}
	if res.QualityReduced {
		t.Error("auto mode never marks a result as reduced")
	}
	want := []model.Quality{1080, 720, 480}
	if !reflect.DeepEqual(engine.heights, want) {
		t.Errorf("attempted %v, want %v", engine.heights, want)
	}
	if _, err := os.Stat(res.ArtifactPath); err != nil {
		t.Errorf("winning artifact must exist: %v", err)
	}
}

func TestAuto_AbsorbsEngineErrors(t *testing.T) {
	engine := &fakeEngine{
		sizes: map[model.Quality]int{720: 1 * kb},
		errs:  map[model.Quality]error{1080: errors.New("format not available")},
	}
	res := newTestPolicy(engine).Auto(context.Background(), "u", t.TempDir())
	if !res.Success || res.Quality != "720p" {
		t.Errorf("expected 720p success, got %+v", res)
	}
}

func TestAuto_NoSuitableQuality(t *testing.T) {
	engine := &fakeEngine{sizes: map[model.Quality]int{1080: 40 * kb, 720: 40 * kb, 480: 40 * kb, 360: 40 * kb, 240: 40 * kb}}
	jobDir := t.TempDir()

	res := newTestPolicy(engine).Auto(context.Background(), "u", jobDir)
	if res.Success || res.ErrorKind != model.ErrorNoSuitableQuality {
		t.Fatalf("expected no_suitable_quality, got %+v", res)
	}
	if len(engine.heights) != len(Ladder) {
		t.Errorf("expected every rung tried, got %v", engine.heights)
	}
	entries, _ := os.ReadDir(jobDir)
	if len(entries) != 0 {
		t.Errorf("rejected attempts must be cleaned up, found %d entries", len(entries))
	}
}

func TestAuto_StopsWhenContextDone(t *testing.T) {
	engine := &fakeEngine{sizes: map[model.Quality]int{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestPolicy(engine).Auto(ctx, "u", t.TempDir())
	if res.Success {
		t.Fatal("expected failure")
	}
	if len(engine.heights) != 0 {
		t.Errorf("no rung should run after cancellation, got %v", engine.heights)
	}
}

func TestExact(t *testing.T) {
	t.Run("fits", func(t *testing.T) {
		engine := &fakeEngine{sizes: map[model.Quality]int{720: 2 * kb}}
		res := newTestPolicy(engine).Exact(context.Background(), "u", 720, t.TempDir())
		if !res.Success || res.Quality != "720p" || res.QualityReduced {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("too big", func(t *testing.T) {
		engine := &fakeEngine{sizes: map[model.Quality]int{720: 40 * kb}}
		res := newTestPolicy(engine).Exact(context.Background(), "u", 720, t.TempDir())
		if res.ErrorKind != model.ErrorFileTooBig {
			t.Errorf("expected file_too_big, got %s", res.ErrorKind)
		}
	})

	t.Run("bad extension counts as too big", func(t *testing.T) {
		engine := &fakeEngine{sizes: map[model.Quality]int{720: 1 * kb}, ext: "flv"}
		res := newTestPolicy(engine).Exact(context.Background(), "u", 720, t.TempDir())
		if res.ErrorKind != model.ErrorFileTooBig {
			t.Errorf("expected file_too_big, got %s", res.ErrorKind)
		}
	})

	t.Run("engine error", func(t *testing.T) {
		engine := &fakeEngine{errs: map[model.Quality]error{720: errors.New("private video")}}
		res := newTestPolicy(engine).Exact(context.Background(), "u", 720, t.TempDir())
		if res.ErrorKind != model.ErrorExtractionFailed {
			t.Errorf("expected extraction_failed, got %s", res.ErrorKind)
		}
		if res.Detail == "" {
			t.Error("engine error detail should be kept for logging")
		}
	})
}

func TestReduce(t *testing.T) {
	engine := &fakeEngine{sizes: map[model.Quality]int{480: 40 * kb, 360: 3 * kb}}

	res := newTestPolicy(engine).Reduce(context.Background(), "u", 720, t.TempDir())
	if !res.Success {
		t.Fatalf("expected success, got %s", res.ErrorKind)
	}
	if !res.QualityReduced || res.OriginalQuality != "720p" || res.ReducedQuality != "360p" {
		t.Errorf("unexpected reduction fields %+v", res)
	}
	want := []model.Quality{480, 360}
	if !reflect.DeepEqual(engine.heights, want) {
		t.Errorf("attempted %v, want %v", engine.heights, want)
	}
}

func TestReduce_FromLowestRung(t *testing.T) {
	engine := &fakeEngine{}
	res := newTestPolicy(engine).Reduce(context.Background(), "u", 240, t.TempDir())
	if res.ErrorKind != model.ErrorNoSuitableQuality {
		t.Errorf("expected no_suitable_quality, got %s", res.ErrorKind)
	}
	if len(engine.heights) != 0 {
		t.Errorf("no rung is below 240, attempted %v", engine.heights)
	}
}

func TestAudio(t *testing.T) {
	t.Run("fits", func(t *testing.T) {
		res := newTestPolicy(&fakeEngine{audioSize: 2 * kb}).Audio(context.Background(), "u", t.TempDir())
		if !res.Success || res.Title != "song" {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("too big", func(t *testing.T) {
		res := newTestPolicy(&fakeEngine{audioSize: 40 * kb}).Audio(context.Background(), "u", t.TempDir())
		if res.ErrorKind != model.ErrorAudioTooBig {
			t.Errorf("expected audio_too_big, got %s", res.ErrorKind)
		}
	})
}
