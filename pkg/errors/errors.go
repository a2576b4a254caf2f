package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors
type ErrorCode string

const (
	ErrCodeProcessing ErrorCode = "PROCESSING_ERROR"
	ErrCodeTool       ErrorCode = "TOOL_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeDetection  ErrorCode = "DETECTION_ERROR"
	ErrCodeFactor     ErrorCode = "FACTOR_ERROR"
	ErrCodeStretch    ErrorCode = "STRETCH_ERROR"
)

// BPMLabError is the base structured error
type BPMLabError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *BPMLabError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *BPMLabError) Unwrap() error {
	return e.Cause
}

// ProcessingError is a per-file failure outside the detect/stretch stages
// (directory creation, commit, cancellation, recovered panics).
type ProcessingError struct {
	BPMLabError
	Stage string
}

func NewProcessingError(stage, message string, cause error) *ProcessingError {
	return &ProcessingError{
		BPMLabError: BPMLabError{
			Code:    ErrCodeProcessing,
			Message: message,
			Cause:   cause,
		},
		Stage: stage,
	}
}

func (e *ProcessingError) Error() string {
	base := e.BPMLabError.Error()
	return fmt.Sprintf("%s (stage=%s)", base, e.Stage)
}

// ToolError represents an external command failure
type ToolError struct {
	BPMLabError
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
}

func NewToolError(tool, message string, args []string, exitCode int, stderr string, cause error) *ToolError {
	return &ToolError{
		BPMLabError: BPMLabError{
			Code:    ErrCodeTool,
			Message: message,
			Cause:   cause,
		},
		Tool:     tool,
		Args:     args,
		ExitCode: exitCode,
		Stderr:   stderr,
	}
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("[%s] %s: %s (exit=%d, stderr=%q): %v",
		e.Code, e.Tool, e.Message, e.ExitCode, truncate(e.Stderr, 200), e.Cause)
}

// ValidationError represents a fatal precondition failure
type ValidationError struct {
	BPMLabError
	Field string
	Value interface{}
}

func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		BPMLabError: BPMLabError{
			Code:    ErrCodeValidation,
			Message: message,
		},
		Field: field,
		Value: value,
	}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] field=%s value=%v: %s", e.Code, e.Field, e.Value, e.Message)
}

// DetectionError means the detector failed or returned an unusable tempo
type DetectionError struct {
	BPMLabError
	Path string
}

func NewDetectionError(path, message string, cause error) *DetectionError {
	return &DetectionError{
		BPMLabError: BPMLabError{
			Code:    ErrCodeDetection,
			Message: message,
			Cause:   cause,
		},
		Path: path,
	}
}

// FactorError means the computed stretch factor is not finite and positive
type FactorError struct {
	BPMLabError
	TargetBPM   float64
	DetectedBPM float64
	Factor      float64
}

func NewFactorError(target, detected, factor float64) *FactorError {
	return &FactorError{
		BPMLabError: BPMLabError{
			Code:    ErrCodeFactor,
			Message: "stretch factor must be finite and positive",
		},
		TargetBPM:   target,
		DetectedBPM: detected,
		Factor:      factor,
	}
}

func (e *FactorError) Error() string {
	return fmt.Sprintf("[%s] %s (target=%g detected=%g factor=%g)",
		e.Code, e.Message, e.TargetBPM, e.DetectedBPM, e.Factor)
}

// StretchError means the time stretcher failed
type StretchError struct {
	BPMLabError
	Factor float64
}

func NewStretchError(factor float64, message string, cause error) *StretchError {
	return &StretchError{
		BPMLabError: BPMLabError{
			Code:    ErrCodeStretch,
			Message: message,
			Cause:   cause,
		},
		Factor: factor,
	}
}

// Is enables errors.Is checks
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As enables errors.As checks
func As[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
