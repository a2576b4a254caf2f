// Package errorlog implements the per-batch failure log.
package errorlog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Skryldev/bpm-lab/domain/model"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink writes one line per failed file. It implements ports.ErrorSink.
type Sink struct {
	path string
	file *os.File
	z    *zap.Logger
}

// Open truncates (or creates) the log at path and keeps it open until Close.
// Fields are attached to every line, e.g. the batch id.
func Open(path string, fields ...zap.Field) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create error log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.CallerKey = zapcore.OmitKey
	encCfg.StacktraceKey = zapcore.OmitKey

	// zapcore.Lock serializes writes; each entry is encoded then written in one call.
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(f), zapcore.WarnLevel)

	return &Sink{
		path: path,
		file: f,
		z:    zap.New(core).With(fields...),
	}, nil
}

// Append records a failed outcome. Non-failure outcomes are ignored.
func (s *Sink) Append(o model.Outcome) {
	if !o.Kind.IsFailure() {
		return
	}
	fields := []zap.Field{
		zap.String("path", o.File.AbsPath),
		zap.Stringer("kind", o.Kind),
	}
	if o.Detection != nil {
		fields = append(fields, zap.Float64("bpm", o.Detection.BPM))
	}
	if o.Factor != 0 {
		fields = append(fields, zap.Float64("factor", o.Factor))
	}
	if o.Err != nil {
		fields = append(fields, zap.String("error", o.Err.Error()))
	}
	s.z.Error(message(o.Kind), fields...)
}

// Path returns the log file location
func (s *Sink) Path() string { return s.path }

// Close flushes and closes the log file
func (s *Sink) Close() error {
	return multierr.Combine(s.z.Sync(), s.file.Close())
}

func message(k model.OutcomeKind) string {
	switch k {
	case model.OutcomeDetectionFailed:
		return "tempo detection failed"
	case model.OutcomeInvalidFactor:
		return "invalid stretch factor"
	case model.OutcomeStretchFailed:
		return "time stretch failed"
	default:
		return "unexpected error"
	}
}
