package main

import "time"

type Route string

const (
	// RouteStandard uses the default Bot API endpoint, artifacts up to 50MB.
	RouteStandard Route = "standard"
	// RouteExtended uses the local Bot API gateway, artifacts up to 2GB.
	RouteExtended Route = "extended"
)

type JobStatus string

const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusTranscoding JobStatus = "transcoding"
	JobStatusUploading   JobStatus = "uploading"
	JobStatusFinished    JobStatus = "finished"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCancelled   JobStatus = "cancelled"
)

// VideoJob is the unit of work for one user request. The serialized part
// travels through the queue; the remaining fields are filled in by the
// pipeline stages while the job is being processed.
type VideoJob struct {
	// ID is generated at intake and used as the correlation key for
	// status notifications and archive objects.
	ID string `json:"id"`
	// ChatID is the chat the final artifact or error message goes to.
	ChatID int64 `json:"chat_id"`
	// UserID identifies the requesting user for the last-video memory.
	UserID int64 `json:"user_id"`
	// ReplyTo is the message that triggered the job.
	ReplyTo int `json:"reply_to"`
	// ProgressMessageID is the placeholder message edited on stage transitions.
	ProgressMessageID int `json:"progress_message_id,omitempty"`
	// SourceURL is the video reference: a page URL or a Bot API file link.
	SourceURL string `json:"source_url"`
	// TrimStart/TrimEnd select a clip in seconds. Both zero means no trim.
	TrimStart int `json:"trim_start,omitempty"`
	TrimEnd   int `json:"trim_end,omitempty"`
	// Title is the source title when known at intake (memory replays).
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Pipeline state, populated stage by stage.
	Status       JobStatus `json:"-"`
	TempDir      string    `json:"-"`
	ArtifactPath string    `json:"-"`
	Size         int64     `json:"-"`
	Route        Route     `json:"-"`
}

// TranscodeResult is the transcoder's output, handed to the dispatcher.
type TranscodeResult struct {
	Path      string
	Size      int64
	Duration  time.Duration
	Width     int
	Height    int
	Thumbnail string
}

// VideoMeta is what ffprobe reports about an artifact.
type VideoMeta struct {
	Duration time.Duration
	Width    int
	Height   int
	Codec    string
}

// LLMExchange records one round trip to the inference API.
type LLMExchange struct {
	Prompt    string
	Response  string
	Truncated bool
	Latency   time.Duration
	Status    int
}

// Intent is the structured interpretation of a free-form user message.
type Intent struct {
	Action       string  `json:"action"`
	VideoURL     string  `json:"video_url"`
	StartTime    *int    `json:"start_time"`
	EndTime      *int    `json:"end_time"`
	UseLastVideo bool    `json:"use_last_video"`
	Confidence   float64 `json:"confidence"`
}

const (
	ActionDownload        = "download"
	ActionTrim            = "trim"
	ActionDownloadAndTrim = "download_and_trim"
	ActionUnknown         = "unknown"
)

// VideoMemory is the per-user record of the last delivered video.
type VideoMemory struct {
	URL      string    `json:"url"`
	Title    string    `json:"title,omitempty"`
	Duration int       `json:"duration,omitempty"`
	FileID   string    `json:"file_id,omitempty"`
	SavedAt  time.Time `json:"saved_at"`
}

// RedisNotification mirrors the payload published on stage transitions.
type RedisNotification struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}
