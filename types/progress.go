package types

// JobProgress is a single progress tick reported by a download unit.
// Byte counts are optional: stage-only ticks carry just a message.
type JobProgress struct {
	Message         string `json:"message,omitempty"`
	DownloadedBytes *int64 `json:"downloaded_bytes"`
	TotalBytes      *int64 `json:"total_bytes"`
}

// DownloadedPercent returns the rounded completion percentage, or nil
// when either byte count is unknown.
func (p JobProgress) DownloadedPercent() *int {
	if p.TotalBytes == nil || p.DownloadedBytes == nil || *p.TotalBytes == 0 {
		return nil
	}
	pct := int(float64(*p.DownloadedBytes) / float64(*p.TotalBytes) * 100)
	return &pct
}

// ProgressUpdate is the event payload broadcast to observers on every
// job transition and progress tick. Progress is nil for pure state
// updates (start and terminal transitions).
type ProgressUpdate struct {
	Job      JobWithItem  `json:"job"`
	Progress *JobProgress `json:"progress"`
}

// EventProgressUpdate is the event name under which updates are published.
const EventProgressUpdate = "progress_update"
