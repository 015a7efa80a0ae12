package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Tier is a user's service class
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierAdmin   Tier = "admin"
)

// MediaKind is the kind of artifact a job produces
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// Quality is a video height in pixels. Zero means "pick automatically".
type Quality int

const (
	QualityAuto  Quality = 0
	Quality1080p Quality = 1080
	Quality720p  Quality = 720
	Quality480p  Quality = 480
	Quality360p  Quality = 360
	Quality240p  Quality = 240
)

func (q Quality) String() string {
	if q == QualityAuto {
		return "auto"
	}
	return fmt.Sprintf("%dp", int(q))
}

// ParseQuality accepts "720", "720p" and "auto".
func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "auto" {
		return QualityAuto, nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, "p"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid quality %q", s)
	}
	return Quality(n), nil
}

// ErrorKind classifies a failed job attempt for the calling layer
type ErrorKind string

const (
	ErrorTimeout              ErrorKind = "timeout"
	ErrorTooManyDownloads     ErrorKind = "too_many_downloads"
	ErrorFileTooBig           ErrorKind = "file_too_big"
	ErrorNoSuitableQuality    ErrorKind = "no_suitable_quality"
	ErrorAudioTooBig          ErrorKind = "audio_too_big"
	ErrorUnknown              ErrorKind = "unknown_error"
	ErrorExtractionFailed     ErrorKind = "extraction_failed"
	ErrorDeliveryUnauthorized ErrorKind = "delivery_unauthorized"
	ErrorDeliveryFailed       ErrorKind = "delivery_failed"
)
