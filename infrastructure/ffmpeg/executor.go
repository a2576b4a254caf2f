package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	pkgerrors "github.com/Skryldev/bpm-lab/pkg/errors"
	"github.com/Skryldev/bpm-lab/pkg/logger"
	"go.uber.org/zap"
)

const toolName = "ffmpeg"

// atempo accepts [0.5, 2.0] on every ffmpeg release; larger changes are chained.
const (
	minTempoStage = 0.5
	maxTempoStage = 2.0
)

// Executor implements ports.TimeStretcher with ffmpeg's atempo filter
type Executor struct {
	ffmpegPath string
	log        *logger.Logger
}

// ExecutorConfig holds configuration for the FFmpeg executor
type ExecutorConfig struct {
	FFmpegPath string // resolved from PATH when empty
	Logger     *logger.Logger
}

// NewExecutor creates a new FFmpeg executor
func NewExecutor(cfg ExecutorConfig) *Executor {
	path := cfg.FFmpegPath
	if path == "" {
		path = toolName
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Executor{
		ffmpegPath: path,
		log:        log,
	}
}

// Available checks that the ffmpeg binary can be found
func (e *Executor) Available(_ context.Context) error {
	if _, err := exec.LookPath(e.ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	return nil
}

// Stretch re-encodes inputPath to outputPath with its tempo scaled by factor.
// The output container follows the outputPath extension.
func (e *Executor) Stretch(ctx context.Context, inputPath, outputPath string, factor float64) error {
	fb := NewFilterChainBuilder().AddTempo(factor)
	if fb.IsEmpty() {
		return pkgerrors.NewValidationError("factor", factor, "tempo factor must be finite and positive")
	}
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-vn",
		"-map_metadata", "0",
		"-af", fb.Build(),
		outputPath,
	}
	return e.Execute(ctx, args)
}

// Execute runs ffmpeg with the given arguments
func (e *Executor) Execute(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.FromContext(ctx, e.log).Debug("executing ffmpeg",
		zap.Strings("args", args),
	)

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return pkgerrors.NewToolError(
			toolName,
			"execution failed",
			args,
			exitCode,
			stderr.String(),
			err,
		)
	}

	return nil
}

// FilterChainBuilder constructs an ffmpeg audio filter string
type FilterChainBuilder struct {
	filters []string
}

func NewFilterChainBuilder() *FilterChainBuilder {
	return &FilterChainBuilder{}
}

// AddTempo appends atempo stages whose product is factor.
// Invalid factors add nothing.
func (b *FilterChainBuilder) AddTempo(factor float64) *FilterChainBuilder {
	for _, stage := range tempoStages(factor) {
		b.filters = append(b.filters, "atempo="+strconv.FormatFloat(stage, 'f', -1, 64))
	}
	return b
}

func (b *FilterChainBuilder) Build() string {
	return strings.Join(b.filters, ",")
}

func (b *FilterChainBuilder) IsEmpty() bool {
	return len(b.filters) == 0
}

// tempoStages splits factor into steps within [minTempoStage, maxTempoStage].
func tempoStages(factor float64) []float64 {
	if !(factor > 0) || math.IsInf(factor, 0) {
		return nil
	}
	var stages []float64
	for factor > maxTempoStage {
		stages = append(stages, maxTempoStage)
		factor /= maxTempoStage
	}
	for factor < minTempoStage {
		stages = append(stages, minTempoStage)
		factor /= minTempoStage
	}
	return append(stages, factor)
}
