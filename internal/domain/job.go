package domain

// JobHandle identifies a submitted generation job. Both identifiers are
// vendor-opaque; at least one is non-empty after a successful submit.
// Text-to-image jobs are polled by SubmitID, image-to-image jobs by
// HistoryID. InputURIs records the reference-image storage keys sent in the
// draft so echoed inputs can be filtered from the result set.
type JobHandle struct {
	SubmitID  string
	HistoryID string
	InputURIs []string
}

// Valid reports whether the handle can be polled.
func (h JobHandle) Valid() bool {
	return h.SubmitID != "" || h.HistoryID != ""
}

// JobState enumerates the lifecycle states of a generation job.
type JobState int

const (
	JobProcessing JobState = iota
	JobQueued
	JobSucceeded
	JobFailed
	JobBlocked
)

// Terminal reports whether the state ends the polling loop.
func (s JobState) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobBlocked:
		return true
	}
	return false
}

func (s JobState) String() string {
	switch s {
	case JobQueued:
		return "queued"
	case JobProcessing:
		return "processing"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	case JobBlocked:
		return "blocked"
	}
	return "unknown"
}

// QueueInfo carries the vendor-reported queue position while a job awaits
// capacity.
type QueueInfo struct {
	Position   int
	Length     int
	ETASeconds int
}

// JobStatus is the tagged result of one poll. Queue is set only for
// JobQueued, ImageURLs only for JobSucceeded, FailCode/FailMessage only for
// JobFailed and JobBlocked.
type JobStatus struct {
	State       JobState
	Queue       *QueueInfo
	ImageURLs   []string
	FailCode    string
	FailMessage string
}
