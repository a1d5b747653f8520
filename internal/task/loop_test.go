package task

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/raphaelgruber/whitelister/internal/catalog"
	"github.com/raphaelgruber/whitelister/internal/ingest"
)

// driveToTerminal runs the loop, confirming the first file as soon as the
// selection opens, and returns every observed snapshot once a terminal phase
// is reached.
func driveToTerminal(t *testing.T, o *Orchestrator, opts ...LoopOption) []Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		loop  *Loop
		snaps []Snapshot
	)
	opts = append(opts, WithLoopLogger(quietLogger()), WithObserver(func(s Snapshot) {
		snaps = append(snaps, s)
		switch s.Phase {
		case PhaseSelectingFile:
			loop.Send(Confirmed{})
		case PhaseCompleted, PhaseFailed:
			cancel()
		}
	}))
	loop = NewLoop(o, opts...)
	loop.Send(StartRequested{})

	err := loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled, "loop should stop at a terminal phase, not time out")
	return snaps
}

func TestLoop_IngestsRealFile(t *testing.T) {
	dir := t.TempDir()
	data, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().
		Bytes([]byte("STUDENT NUMBER\tENROLMENT DATE\n12345\t01.06.2023 09.15.00\n"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "export.csv"), data, 0o644))

	in := ingest.New(ingest.DefaultOptions(), ingest.WithLogger(quietLogger()))
	o := New(catalog.New(dir, ".csv"), in, quietLogger())

	snaps := driveToTerminal(t, o)

	last := snaps[len(snaps)-1]
	require.Equal(t, PhaseCompleted, last.Phase, last.Message)
	assert.Equal(t, 1.0, last.Progress)
	assert.Equal(t, 1, last.Rows)

	table := o.Table()
	require.NotNil(t, table)
	assert.Equal(t, []string{"12345"}, table.IDs())
	assert.Equal(t, []time.Time{time.Date(2023, 6, 1, 9, 15, 0, 0, time.UTC)}, table.Dates())

	prev := 0.0
	for _, s := range snaps {
		if s.Phase != PhaseRunning && s.Phase != PhaseCompleted {
			continue
		}
		assert.GreaterOrEqual(t, s.Progress, prev)
		prev = s.Progress
	}

	o.Handle(Dismissed{})
	assert.Nil(t, o.Table())
}

func TestLoop_FailureSurfacesStage(t *testing.T) {
	dir := t.TempDir()
	data, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().
		Bytes([]byte("STUDENT NUMBER\tENROLMENT DATE\n12345\t31/12/2024\n"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.csv"), data, 0o644))

	in := ingest.New(ingest.DefaultOptions(), ingest.WithLogger(quietLogger()))
	o := New(catalog.New(dir, ".csv"), in, quietLogger())

	snaps := driveToTerminal(t, o)

	last := snaps[len(snaps)-1]
	assert.Equal(t, PhaseFailed, last.Phase)
	assert.Equal(t, string(ingest.StageCast), last.ErrorStage)
	assert.Nil(t, o.Table())
}

func TestLoop_TicksCopyProgressWhileRunning(t *testing.T) {
	fi := &fakeIngestor{progress: []float64{0.5}, release: make(chan struct{})}
	o := New(twoFiles(), fi, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var loop *Loop
	released := false
	phases := make(map[Phase]bool)
	loop = NewLoop(o,
		WithPollInterval(time.Millisecond),
		WithLoopLogger(quietLogger()),
		WithObserver(func(s Snapshot) {
			phases[s.Phase] = true
			switch {
			case s.Phase == PhaseSelectingFile:
				loop.Send(Confirmed{})
			case s.Phase == PhaseRunning && s.Progress == 0.5 && !released:
				// Only a tick can have copied this value
				released = true
				close(fi.release)
			case s.Phase == PhaseCompleted:
				cancel()
			}
		}),
	)
	loop.Send(StartRequested{})

	err := loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, released, "poller never observed worker progress")
	assert.True(t, phases[PhaseCompleted])
	assert.Equal(t, 1.0, o.Snapshot().Progress)
}

func TestLoop_EmptyCatalogFails(t *testing.T) {
	o := New(&fakeCatalog{}, &fakeIngestor{}, quietLogger())

	snaps := driveToTerminal(t, o)

	require.Len(t, snaps, 1)
	assert.Equal(t, PhaseFailed, snaps[0].Phase)
	assert.Equal(t, StageDiscovery, snaps[0].ErrorStage)
}
