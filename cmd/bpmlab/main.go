// Command bpmlab detects the tempo of every audio file under a directory and
// writes time-stretched copies at a target BPM.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	bpmlab "github.com/Skryldev/bpm-lab"
	"github.com/Skryldev/bpm-lab/internal/console"
	"github.com/Skryldev/bpm-lab/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	// ── Graceful shutdown via signal ──────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type processFlags struct {
	targetBPM       float64
	outputDir       string
	analyzeOnly     bool
	workers         int
	errorLog        string
	stretcher       string
	detectorCmd     string
	octaveFloor     float64
	jobTimeout      time.Duration
	stretchAttempts int
	plain           bool
	logLevel        string
	devLog          bool
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "bpmlab",
		Short:         "Batch tempo detection and time-stretching",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newProcessCmd(stdout))
	return root
}

func newProcessCmd(stdout io.Writer) *cobra.Command {
	f := &processFlags{}
	cmd := &cobra.Command{
		Use:   "process <input-dir>",
		Short: "Stretch every mp3/wav/flac under input-dir to the target BPM",
		Long: `Scans input-dir recursively for .mp3, .wav and .flac files, detects the
tempo of each one and writes a copy stretched to --target-bpm under
--output-dir, mirroring the input tree.

With --analyze-only the detected tempos are printed and nothing is written.
Per-file failures are listed in the error log and never stop the batch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), stdout, args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.Float64Var(&f.targetBPM, "target-bpm", 0, "Tempo every file is stretched to")
	fl.StringVar(&f.outputDir, "output-dir", "./out", "Root of the mirrored output tree")
	fl.BoolVar(&f.analyzeOnly, "analyze-only", false, "Only detect and print tempos; write nothing")
	fl.IntVar(&f.workers, "workers", runtime.NumCPU(), "Number of files processed in parallel")
	fl.StringVar(&f.errorLog, "error-log", "errors.log", "Per-file failure log, truncated on each run")
	fl.StringVar(&f.stretcher, "stretcher", bpmlab.StretcherRubberband, "Time-stretch backend: rubberband or ffmpeg")
	fl.StringVar(&f.detectorCmd, "detector-cmd", "aubio tempo", "Tempo detection command; the file path is appended")
	fl.Float64Var(&f.octaveFloor, "octave-floor", 0, "Double detected tempos below this value (0 disables)")
	fl.DurationVar(&f.jobTimeout, "job-timeout", 0, "Maximum time spent on one file (0 disables)")
	fl.IntVar(&f.stretchAttempts, "stretch-attempts", 1, "Attempts per file before a stretch is reported failed")
	fl.BoolVar(&f.plain, "plain", false, "Disable the live progress view")
	fl.StringVar(&f.logLevel, "log-level", "warn", "Diagnostic log level on stderr: debug, info, warn, error")
	fl.BoolVar(&f.devLog, "dev-log", false, "Human-readable development logging")

	if err := cmd.MarkFlagRequired("target-bpm"); err != nil {
		panic(fmt.Sprintf("failed to mark flag 'target-bpm' as required: %v", err))
	}
	return cmd
}

func runProcess(ctx context.Context, stdout io.Writer, inputDir string, f *processFlags) error {
	if f.workers < 1 {
		return fmt.Errorf("--workers must be at least 1, got %d", f.workers)
	}

	log, err := logger.New(logger.Options{Development: f.devLog, Level: f.logLevel})
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}

	live := false
	if file, ok := stdout.(*os.File); ok && !f.plain {
		live = console.IsTerminal(file)
	}
	reporter := console.New(stdout, console.Options{Live: live, ErrorLog: f.errorLog})

	processor, err := bpmlab.New(bpmlab.Config{
		DetectorCommand: strings.Fields(f.detectorCmd),
		OctaveFloor:     f.octaveFloor,
		Stretcher:       f.stretcher,
		Logger:          log,
		Reporter:        reporter,
	})
	if err != nil {
		return err
	}
	defer processor.Close()

	opts := []bpmlab.Option{
		bpmlab.WithOutputDir(f.outputDir),
		bpmlab.WithAnalyzeOnly(f.analyzeOnly),
		bpmlab.WithWorkers(f.workers),
		bpmlab.WithErrorLog(f.errorLog),
		bpmlab.WithJobTimeout(f.jobTimeout),
		bpmlab.WithStretchRetry(f.stretchAttempts, 0),
	}
	summary, err := processor.Run(ctx, inputDir, f.targetBPM, opts...)
	if err != nil {
		return err
	}
	log.Info("done", zap.String("batch_id", summary.BatchID), zap.Stringer("elapsed", summary.Elapsed))
	return nil
}
