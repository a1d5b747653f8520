package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/whitelister/internal/catalog"
	"github.com/raphaelgruber/whitelister/internal/ingest"
	"github.com/raphaelgruber/whitelister/internal/metrics"
	"github.com/raphaelgruber/whitelister/internal/task"
)

var ingestHead int

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest an input file without the UI",
	Long: `Ingest one input file from the data directory and print a summary.

Without an argument the newest file is used. The file may be given by name
or by path, but it must be one of the files 'whitelister list' shows.

Examples:
  whitelister ingest
  whitelister ingest export.csv
  whitelister ingest --head 10 export.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVarP(&ingestHead, "head", "n", ingest.DefaultOptions().HeadRows, "rows to print after ingestion")
}

func runIngest(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	want := ""
	if len(args) == 1 {
		want = args[0]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	orch := newOrchestrator()
	var (
		loop     *task.Loop
		final    task.Snapshot
		chosen   bool
		notFound bool
		shown    = -1.0
	)

	loop = task.NewLoop(orch,
		task.WithPollInterval(cfg.PollInterval),
		task.WithLoopLogger(logger),
		task.WithObserver(func(s task.Snapshot) {
			switch s.Phase {
			case task.PhaseSelectingFile:
				if chosen {
					return
				}
				chosen = true
				idx := pickFile(s.Files, want)
				if idx < 0 {
					notFound = true
					loop.Send(task.Cancelled{})
					return
				}
				loop.Send(task.FileChosen{Index: idx})
				loop.Send(task.Confirmed{})
			case task.PhaseRunning:
				if s.Progress > shown {
					shown = s.Progress
					fmt.Fprintf(out, "%s %3.0f%%\n", s.File.Name(), s.Progress*100)
				}
			case task.PhaseIdle:
				if notFound {
					cancel()
				}
			case task.PhaseCompleted, task.PhaseFailed:
				final = s
				cancel()
			}
		}),
	)
	loop.Send(task.StartRequested{})

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	defer orch.Handle(task.Dismissed{})

	switch {
	case notFound:
		return fmt.Errorf("input file %q not found in %s", want, cfg.DataDir())
	case final.Phase == task.PhaseFailed:
		return fmt.Errorf("%s failed: %s", final.ErrorStage, final.Message)
	case final.Phase != task.PhaseCompleted:
		return fmt.Errorf("interrupted")
	}

	fmt.Fprintf(out, "\n%s\n\n", final.Message)
	if table := orch.Table(); table != nil {
		printTable(out, table, ingestHead)
	}
	if verbose {
		printStats(out, collector.Snapshot())
	}
	return nil
}

// pickFile returns the index of want in files, matched by path or base name.
// An empty want selects the newest file.
func pickFile(files []catalog.CandidateFile, want string) int {
	if want == "" {
		return 0
	}
	abs, _ := filepath.Abs(want)
	for i, f := range files {
		if f.Path == want || f.Path == abs || f.Name() == want {
			return i
		}
	}
	return -1
}

func printTable(w io.Writer, t *ingest.Table, n int) {
	fmt.Fprintf(w, "Shape: (%d, %d)\n\n", t.NumRows(), t.NumCols())

	fmt.Fprintln(w, "Schema:")
	for _, f := range t.Schema().Fields() {
		fmt.Fprintf(w, "  %s: %s\n", f.Name, f.Type)
	}

	rows := t.Head(n)
	if len(rows) == 0 {
		return
	}
	names := make([]string, t.NumCols())
	for i, f := range t.Schema().Fields() {
		names[i] = f.Name
	}
	fmt.Fprintf(w, "\nFirst %d rows:\n", len(rows))
	fmt.Fprintf(w, "  %s\n", strings.Join(names, " | "))
	for _, row := range rows {
		fmt.Fprintf(w, "  %s\n", strings.Join(row, " | "))
	}
}

func printStats(w io.Writer, s metrics.Snapshot) {
	fmt.Fprintln(w, "\nStage timings:")
	for _, st := range stageTimings(s) {
		fmt.Fprintf(w, "  %-7s %6.1fms\n", st.name, st.snap.AvgTimeMs)
	}
	fmt.Fprintf(w, "  bytes read: %d\n", s.BytesRead)
}

type stageTiming struct {
	name string
	snap *metrics.StageSnapshot
}

// stageTimings lists the recorded stages in pipeline order.
func stageTimings(s metrics.Snapshot) []stageTiming {
	all := []stageTiming{
		{metrics.StageRead, s.Read},
		{metrics.StageDecode, s.Decode},
		{metrics.StageParse, s.Parse},
		{metrics.StageCast, s.Cast},
		{metrics.StageBuild, s.Build},
	}
	out := all[:0]
	for _, st := range all {
		if st.snap != nil {
			out = append(out, st)
		}
	}
	return out
}
