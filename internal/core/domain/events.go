package domain

import "time"

// Event is the marker interface for everything flowing out of the
// pipeline and batch scheduler. Consumers subscribe through the event
// bus; publication is non-blocking.
type Event interface {
	eventType() string
}

// EventType exposes the wire name of an event for envelopes and logs.
func EventType(e Event) string {
	if e == nil {
		return ""
	}
	return e.eventType()
}

// StageStarted is emitted when a pipeline stage begins.
type StageStarted struct {
	ProcessingID string `json:"processing_id"`
	Document     string `json:"document"`
	Stage        Stage  `json:"stage"`
}

func (StageStarted) eventType() string { return "stage_started" }

// StageCompleted is emitted when a pipeline stage succeeds.
type StageCompleted struct {
	ProcessingID string        `json:"processing_id"`
	Document     string        `json:"document"`
	Stage        Stage         `json:"stage"`
	Duration     time.Duration `json:"duration"`
}

func (StageCompleted) eventType() string { return "stage_completed" }

// StageFailed is emitted when a pipeline stage errors or times out.
type StageFailed struct {
	ProcessingID string        `json:"processing_id"`
	Document     string        `json:"document"`
	Stage        Stage         `json:"stage"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error"`
}

func (StageFailed) eventType() string { return "stage_failed" }

// DocumentCompleted is emitted once per document, successful or not.
type DocumentCompleted struct {
	ProcessingID string        `json:"processing_id"`
	Document     string        `json:"document"`
	Success      bool          `json:"success"`
	Duration     time.Duration `json:"duration"`
}

func (DocumentCompleted) eventType() string { return "document_completed" }

// BatchProgress is emitted after each fixed-size batch completes.
type BatchProgress struct {
	BatchID   string `json:"batch_id"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

func (BatchProgress) eventType() string { return "batch_progress" }

// BatchCompleted is emitted when a whole batch job finishes.
type BatchCompleted struct {
	BatchID string     `json:"batch_id"`
	Stats   BatchStats `json:"stats"`
}

func (BatchCompleted) eventType() string { return "batch_completed" }

// BatchFailed is emitted on batch-level errors, including cancellation.
type BatchFailed struct {
	BatchID string `json:"batch_id"`
	Error   string `json:"error"`
}

func (BatchFailed) eventType() string { return "batch_failed" }
