// Package artifact inspects files produced by the extraction engine before
// they are handed to the user.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
)

var (
	ErrUnsafeFilename      = errors.New("unsafe filename")
	ErrExtensionNotAllowed = errors.New("extension not allowed")
	ErrHashFailed          = errors.New("failed to hash artifact")
	ErrTooLarge            = errors.New("artifact exceeds size limit")
)

const bytesPerMB = 1024 * 1024

// unsafeFragments may not appear anywhere in an artifact's base name
var unsafeFragments = []string{
	"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "..",
	";", "&", "$", "`", "!", "\n",
}

// Artifact is a file that passed every check
type Artifact struct {
	Path   string
	Name   string
	SizeMB float64
	Hash   string
}

// Validator holds the acceptance rules for produced files
type Validator struct {
	MaxFilenameLength int
	MaxSizeMB         float64
	Extensions        map[model.MediaKind][]string
}

// DefaultExtensions allows mp4, mkv and webm for video and mp3 for audio.
func DefaultExtensions() map[model.MediaKind][]string {
	return map[model.MediaKind][]string{
		model.MediaVideo: {".mp4", ".mkv", ".webm"},
		model.MediaAudio: {".mp3"},
	}
}

func NewValidator(maxFilenameLength int, maxSizeMB float64) *Validator {
	return &Validator{
		MaxFilenameLength: maxFilenameLength,
		MaxSizeMB:         maxSizeMB,
		Extensions:        DefaultExtensions(),
	}
}

// Inspect runs the filename, extension, hash and size checks in that order.
// A file that fails any check is deleted before the error is returned.
func (v *Validator) Inspect(path string, kind model.MediaKind) (*Artifact, error) {
	a, err := v.inspect(path, kind)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return a, nil
}

func (v *Validator) inspect(path string, kind model.MediaKind) (*Artifact, error) {
	name := filepath.Base(path)
	if !v.safeName(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnsafeFilename, name)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(v.Extensions[kind], ext) {
		return nil, fmt.Errorf("%w: %q for %s", ErrExtensionNotAllowed, ext, kind)
	}

	hash, size, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHashFailed, err)
	}

	sizeMB := float64(size) / bytesPerMB
	if sizeMB > v.MaxSizeMB {
		return nil, fmt.Errorf("%w: %.2f MB > %.0f MB", ErrTooLarge, sizeMB, v.MaxSizeMB)
	}

	return &Artifact{Path: path, Name: name, SizeMB: sizeMB, Hash: hash}, nil
}

func (v *Validator) safeName(name string) bool {
	if name == "" || len(name) > v.MaxFilenameLength {
		return false
	}
	for _, frag := range unsafeFragments {
		if strings.Contains(name, frag) {
			return false
		}
	}
	return true
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
