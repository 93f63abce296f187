package model

import "time"

// ProgressEventKind names the lifecycle point a ProgressEvent reports on.
type ProgressEventKind string

const (
	EventAnalyzeStart     ProgressEventKind = "ANALYZE_START"
	EventAnalyzeProgress  ProgressEventKind = "ANALYZE_PROGRESS"
	EventCompressProgress ProgressEventKind = "COMPRESS_PROGRESS"
	EventUploadProgress   ProgressEventKind = "UPLOAD_PROGRESS"
	EventLoadSubmitted    ProgressEventKind = "LOAD_SUBMITTED"
	EventLoadPolling      ProgressEventKind = "LOAD_POLLING"
	EventLoadDone         ProgressEventKind = "LOAD_DONE"
	EventLoadFailed       ProgressEventKind = "LOAD_FAILED"
	EventJobDone          ProgressEventKind = "JOB_DONE"
)

// ProgressEvent is emitted on a single channel by every pipeline stage and
// fanned in to whichever progress.Tracker owns the terminal for a run.
type ProgressEvent struct {
	Kind      ProgressEventKind
	JobID     string
	File      string
	Timestamp time.Time
	Current   int64
	Total     int64
	Message   string
}
