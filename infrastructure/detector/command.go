// Package detector provides tempo detectors backed by external analysis tools.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Skryldev/bpm-lab/domain/model"
	pkgerrors "github.com/Skryldev/bpm-lab/pkg/errors"
	"github.com/Skryldev/bpm-lab/pkg/logger"
	"go.uber.org/zap"
)

// DefaultCommand is aubio's tempo subcommand, which prints "<bpm> bpm".
var DefaultCommand = []string{"aubio", "tempo"}

// CommandDetector implements ports.TempoDetector by running an external
// command with the audio path appended and parsing its stdout.
type CommandDetector struct {
	path string
	args []string
	log  *logger.Logger
}

// CommandConfig holds configuration for CommandDetector
type CommandConfig struct {
	Command []string // program and leading args; DefaultCommand when empty
	Logger  *logger.Logger
}

// NewCommandDetector creates a command-backed detector
func NewCommandDetector(cfg CommandConfig) *CommandDetector {
	command := cfg.Command
	if len(command) == 0 {
		command = DefaultCommand
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &CommandDetector{
		path: command[0],
		args: append([]string(nil), command[1:]...),
		log:  log,
	}
}

// Available checks that the detector binary can be found
func (d *CommandDetector) Available(_ context.Context) error {
	if _, err := exec.LookPath(d.path); err != nil {
		return fmt.Errorf("tempo detector %q not found: %w", d.path, err)
	}
	return nil
}

// Detect runs the detector on path
func (d *CommandDetector) Detect(ctx context.Context, path string) (*model.DetectionResult, error) {
	args := append(append([]string(nil), d.args...), path)
	cmd := exec.CommandContext(ctx, d.path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.FromContext(ctx, d.log).Debug("executing tempo detector", zap.String("cmd", d.path), zap.Strings("args", args))

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, pkgerrors.NewToolError(d.path, "execution failed", args, exitCode, stderr.String(), err)
	}

	return ParseOutput(stdout.Bytes())
}

type jsonOutput struct {
	BPM        *float64 `json:"bpm"`
	Confidence *float64 `json:"confidence"`
}

// ParseOutput reads a tempo from detector stdout. JSON objects use the
// "bpm" and "confidence" keys. Plain text uses the last line mentioning
// "bpm", falling back to the last line holding a number; the first number
// on that line is the tempo and an optional second one the confidence.
func ParseOutput(out []byte) (*model.DetectionResult, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty detector output")
	}

	if trimmed[0] == '{' {
		var js jsonOutput
		if err := json.Unmarshal(trimmed, &js); err != nil {
			return nil, fmt.Errorf("failed to parse detector JSON: %w", err)
		}
		if js.BPM == nil {
			return nil, fmt.Errorf("detector JSON has no bpm field")
		}
		res := &model.DetectionResult{BPM: *js.BPM}
		if js.Confidence != nil {
			res.Confidence = clamp01(*js.Confidence)
		}
		return res, nil
	}

	var tagged, last []float64
	for _, line := range strings.Split(string(trimmed), "\n") {
		nums := numbers(line)
		if len(nums) == 0 {
			continue
		}
		last = nums
		if strings.Contains(strings.ToLower(line), "bpm") {
			tagged = nums
		}
	}
	chosen := tagged
	if chosen == nil {
		chosen = last
	}
	if chosen == nil {
		return nil, fmt.Errorf("no tempo in detector output %q", truncate(string(trimmed), 80))
	}

	res := &model.DetectionResult{BPM: chosen[0]}
	if len(chosen) > 1 {
		res.Confidence = clamp01(chosen[1])
	}
	return res, nil
}

func numbers(line string) []float64 {
	var out []float64
	for _, f := range strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == ':' || r == '=' || r == '(' || r == ')'
	}) {
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
