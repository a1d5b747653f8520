// Package task coordinates file selection, background ingestion and progress
// display through a small phase machine.
package task

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/raphaelgruber/whitelister/internal/catalog"
	"github.com/raphaelgruber/whitelister/internal/ingest"
	"github.com/raphaelgruber/whitelister/internal/progress"
)

// Phase is the orchestrator's lifecycle state.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseSelectingFile Phase = "selecting"
	PhaseRunning       Phase = "running"
	PhaseCompleted     Phase = "completed"
	PhaseFailed        Phase = "failed"
)

// Error stages outside the ingestion taxonomy.
const (
	StageDiscovery = "discovery"
	StageInternal  = "internal"
)

// ErrNoInputFiles is surfaced when the data directory holds no candidates.
var ErrNoInputFiles = errors.New("no input files found in data directory")

// Catalog lists candidate input files.
type Catalog interface {
	List() []catalog.CandidateFile
}

// Ingestor runs one ingestion to completion.
type Ingestor interface {
	Ingest(path string, onProgress func(float64)) (*ingest.Table, error)
}

// Snapshot is the read-only view of orchestrator state for presentation.
type Snapshot struct {
	Phase      Phase
	Progress   float64
	Files      []catalog.CandidateFile
	Selected   int
	File       catalog.CandidateFile // file of the current or last run
	RunID      string
	Rows       int
	Message    string
	ErrorStage string
}

// Orchestrator owns the phase and decides when ingestion may start. Handle
// must be called from a single goroutine.
type Orchestrator struct {
	catalog  Catalog
	ingestor Ingestor
	logger   *slog.Logger

	state    Snapshot
	progress *progress.Channel
	table    *ingest.Table
}

// New creates an idle orchestrator.
func New(c Catalog, in Ingestor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		catalog:  c,
		ingestor: in,
		logger:   logger,
		state:    Snapshot{Phase: PhaseIdle, Selected: -1},
	}
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase {
	return o.state.Phase
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	s := o.state
	s.Files = slices.Clone(o.state.Files)
	return s
}

// Table returns the table of the last successful run until it is dismissed.
func (o *Orchestrator) Table() *ingest.Table {
	return o.table
}

// Handle applies one event. A non-nil Cmd must be run off the interactive
// context and its result passed back to Handle.
func (o *Orchestrator) Handle(ev Event) Cmd {
	switch ev := ev.(type) {
	case StartRequested:
		o.start()
	case FileChosen:
		o.choose(ev.Index)
	case Confirmed:
		return o.confirm()
	case Cancelled:
		o.cancel()
	case Dismissed:
		o.dismiss()
	case Tick:
		o.tick()
	case WorkerDone:
		o.finish(ev)
	}
	return nil
}

func (o *Orchestrator) start() {
	if o.state.Phase != PhaseIdle {
		o.logger.Debug("start ignored", "phase", o.state.Phase)
		return
	}

	files := o.catalog.List()
	if len(files) == 0 {
		o.state.Phase = PhaseFailed
		o.state.Message = ErrNoInputFiles.Error()
		o.state.ErrorStage = StageDiscovery
		o.logger.Error("no input files found in data directory")
		return
	}

	o.state.Phase = PhaseSelectingFile
	o.state.Files = files
	o.state.Selected = 0
	o.logger.Info("file selection opened", "candidates", len(files))
}

func (o *Orchestrator) choose(index int) {
	if o.state.Phase != PhaseSelectingFile || index < 0 || index >= len(o.state.Files) {
		return
	}
	o.state.Selected = index
}

func (o *Orchestrator) confirm() Cmd {
	if o.state.Phase != PhaseSelectingFile {
		return nil
	}

	file := o.state.Files[o.state.Selected]
	runID := uuid.New().String()[:8] // Short ID for log correlation

	o.releaseTable()
	o.state = Snapshot{
		Phase:    PhaseRunning,
		Selected: -1,
		File:     file,
		RunID:    runID,
	}
	ch := progress.New()
	o.progress = ch

	o.logger.Info("selected file", "run_id", runID, "path", file.Path)

	ingestor := o.ingestor
	logger := o.logger
	return func() (ev Event) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("ingestion panicked", "run_id", runID, "panic", r)
				ev = WorkerDone{RunID: runID, Err: fmt.Errorf("internal panic: %v", r)}
			}
		}()
		table, err := ingestor.Ingest(file.Path, ch.Write)
		return WorkerDone{RunID: runID, Table: table, Err: err}
	}
}

func (o *Orchestrator) cancel() {
	if o.state.Phase != PhaseSelectingFile {
		return
	}
	o.state.Phase = PhaseIdle
	o.state.Files = nil
	o.state.Selected = -1
}

func (o *Orchestrator) dismiss() {
	if o.state.Phase != PhaseCompleted && o.state.Phase != PhaseFailed {
		return
	}
	o.releaseTable()
	o.state = Snapshot{Phase: PhaseIdle, Selected: -1}
}

func (o *Orchestrator) tick() {
	if o.state.Phase != PhaseRunning || o.progress == nil {
		return
	}
	if v := o.progress.Read(); v > o.state.Progress {
		o.state.Progress = v
	}
}

func (o *Orchestrator) finish(done WorkerDone) {
	if o.state.Phase != PhaseRunning || done.RunID != o.state.RunID {
		o.logger.Warn("stale worker result ignored", "run_id", done.RunID)
		done.Table.Release()
		return
	}
	o.progress = nil

	if done.Err != nil {
		o.state.Phase = PhaseFailed
		o.state.Message = done.Err.Error()
		o.state.ErrorStage = string(ingest.StageOf(done.Err))
		if o.state.ErrorStage == "" {
			o.state.ErrorStage = StageInternal
		}
		done.Table.Release()
		o.logger.Error("task failed", "run_id", o.state.RunID, "error", done.Err)
		return
	}

	o.table = done.Table
	o.state.Phase = PhaseCompleted
	o.state.Progress = 1.0
	if done.Table != nil {
		o.state.Rows = done.Table.NumRows()
	}
	o.state.Message = fmt.Sprintf("Processed %s: %d rows", o.state.File.Name(), o.state.Rows)
	o.logger.Info("task completed successfully", "run_id", o.state.RunID, "rows", o.state.Rows)
}

func (o *Orchestrator) releaseTable() {
	o.table.Release()
	o.table = nil
}
