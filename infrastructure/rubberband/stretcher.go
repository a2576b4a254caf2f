// Package rubberband drives the rubberband command-line time stretcher.
package rubberband

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/Skryldev/bpm-lab/domain/model"
	pkgerrors "github.com/Skryldev/bpm-lab/pkg/errors"
	"github.com/Skryldev/bpm-lab/pkg/logger"
	"go.uber.org/zap"
)

const toolName = "rubberband"

// Stretcher implements ports.TimeStretcher
type Stretcher struct {
	path      string
	extraArgs []string
	log       *logger.Logger
}

// Config holds configuration for the rubberband stretcher
type Config struct {
	Path      string   // resolved from PATH when empty
	ExtraArgs []string // inserted before the input path, e.g. "--crisp", "5"
	Logger    *logger.Logger
}

// New creates a rubberband stretcher
func New(cfg Config) *Stretcher {
	path := cfg.Path
	if path == "" {
		path = toolName
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Stretcher{
		path:      path,
		extraArgs: cfg.ExtraArgs,
		log:       log,
	}
}

// Available checks that the rubberband binary can be found
func (s *Stretcher) Available(_ context.Context) error {
	if _, err := exec.LookPath(s.path); err != nil {
		return fmt.Errorf("rubberband not found: %w", err)
	}
	return nil
}

// Stretch runs rubberband --tempo factor on inputPath, writing outputPath
func (s *Stretcher) Stretch(ctx context.Context, inputPath, outputPath string, factor float64) error {
	if !model.ValidFactor(factor) {
		return pkgerrors.NewValidationError("factor", factor, "tempo factor must be finite and positive")
	}

	args := Args(factor, s.extraArgs, inputPath, outputPath)
	cmd := exec.CommandContext(ctx, s.path, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.FromContext(ctx, s.log).Debug("executing rubberband", zap.Strings("args", args))

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return pkgerrors.NewToolError(toolName, "execution failed", args, exitCode, stderr.String(), err)
	}
	return nil
}

// Args builds the rubberband argument list
func Args(factor float64, extra []string, inputPath, outputPath string) []string {
	args := []string{
		"--tempo", strconv.FormatFloat(factor, 'f', 6, 64),
		"--quiet", // keep rubberband's own progress off our console
	}
	args = append(args, extra...)
	return append(args, inputPath, outputPath)
}
