package model

import "time"

// JobRequest is one user's request for a single extraction job
type JobRequest struct {
	ID      string    `json:"id"`
	UserID  int64     `json:"userId" validate:"required,gt=0"`
	URL     string    `json:"url" validate:"required,url,max=500"`
	Kind    MediaKind `json:"kind" validate:"required,oneof=video audio"`
	Quality Quality   `json:"quality" validate:"omitempty,oneof=1080 720 480 360 240"`
}

// JobResult is produced once per job attempt. A successful result carries the
// artifact fields; a failed one carries only ErrorKind.
type JobResult struct {
	Success         bool      `json:"success"`
	ArtifactPath    string    `json:"-"`
	Location        string    `json:"location,omitempty"`
	Title           string    `json:"title,omitempty"`
	Quality         string    `json:"quality,omitempty"`
	SizeMB          float64   `json:"sizeMb,omitempty"`
	Hash            string    `json:"hash,omitempty"`
	QualityReduced  bool      `json:"qualityReduced,omitempty"`
	OriginalQuality string    `json:"originalQuality,omitempty"`
	ReducedQuality  string    `json:"reducedQuality,omitempty"`
	ErrorKind       ErrorKind `json:"errorKind,omitempty"`

	// Detail is the raw cause of a failure, for logs only.
	Detail string `json:"-"`
}

// Failure builds a complete failure record.
func Failure(kind ErrorKind) JobResult {
	return JobResult{ErrorKind: kind}
}

// DownloadToken binds the delivery of one job's result to the user who asked for it
type DownloadToken struct {
	Value     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expiry"`
}

// MediaInfo is the metadata the extraction engine reports without downloading
type MediaInfo struct {
	Title       string        `json:"title"`
	Uploader    string        `json:"uploader,omitempty"`
	Duration    time.Duration `json:"duration"`
	Views       int64         `json:"views,omitempty"`
	UploadDate  string        `json:"uploadDate,omitempty"`
	Description string        `json:"description,omitempty"`
	Thumbnail   string        `json:"thumbnail,omitempty"`
}

// JobSubmission is the body of an operator-submitted job
type JobSubmission struct {
	UserID  int64     `json:"userId" validate:"required,gt=0"`
	URL     string    `json:"url" validate:"required,url,max=500"`
	Kind    MediaKind `json:"kind" validate:"required,oneof=video audio"`
	Quality string    `json:"quality" validate:"omitempty,max=8"`
}
