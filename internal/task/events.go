package task

import "github.com/raphaelgruber/whitelister/internal/ingest"

// Event is a discrete input to the orchestrator.
type Event interface {
	isEvent()
}

// StartRequested asks for the candidate file list.
type StartRequested struct{}

// FileChosen moves the selection cursor.
type FileChosen struct {
	Index int
}

// Confirmed starts ingestion of the selected file.
type Confirmed struct{}

// Cancelled abandons file selection.
type Cancelled struct{}

// Dismissed acknowledges a completion notice or error.
type Dismissed struct{}

// Tick samples the progress channel.
type Tick struct{}

// WorkerDone carries the outcome of an ingestion run.
type WorkerDone struct {
	RunID string
	Table *ingest.Table
	Err   error
}

func (StartRequested) isEvent() {}
func (FileChosen) isEvent()     {}
func (Confirmed) isEvent()      {}
func (Cancelled) isEvent()      {}
func (Dismissed) isEvent()      {}
func (Tick) isEvent()           {}
func (WorkerDone) isEvent()     {}

// Cmd is work to run off the interactive context. Its result is fed back
// into the orchestrator as an event.
type Cmd func() Event
