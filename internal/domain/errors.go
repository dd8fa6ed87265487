package domain

import "fmt"

// ErrorType classifies a pipeline failure by the stage that produced
// it. Handlers map types to HTTP status codes.
type ErrorType string

const (
	ErrValidation        ErrorType = "validation"
	ErrRasterization     ErrorType = "rasterization"
	ErrOCR               ErrorType = "ocr"
	ErrTranscription     ErrorType = "transcription"
	ErrStreamInterrupted ErrorType = "stream_interrupted"
	ErrConfig            ErrorType = "config"
)

// PipelineError carries the failing stage, an optional 1-based page
// index (0 when the failure is not page-scoped) and the wrapped cause.
type PipelineError struct {
	Type    ErrorType
	Page    int
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	switch {
	case e.Page > 0 && e.Err != nil:
		return fmt.Sprintf("%s (page %d): %s: %v", e.Type, e.Page, e.Message, e.Err)
	case e.Page > 0:
		return fmt.Sprintf("%s (page %d): %s", e.Type, e.Page, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches two pipeline errors by type, so callers can test against
// a bare constructor result with errors.Is.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

func ValidationError(message string, err error) *PipelineError {
	return &PipelineError{Type: ErrValidation, Message: message, Err: err}
}

func RasterizationError(page int, message string, err error) *PipelineError {
	return &PipelineError{Type: ErrRasterization, Page: page, Message: message, Err: err}
}

func OCRError(page int, message string, err error) *PipelineError {
	return &PipelineError{Type: ErrOCR, Page: page, Message: message, Err: err}
}

func TranscriptionError(message string, err error) *PipelineError {
	return &PipelineError{Type: ErrTranscription, Message: message, Err: err}
}

func StreamInterruptedError(message string, err error) *PipelineError {
	return &PipelineError{Type: ErrStreamInterrupted, Message: message, Err: err}
}

func ConfigError(message string, err error) *PipelineError {
	return &PipelineError{Type: ErrConfig, Message: message, Err: err}
}

// TypeOf returns the pipeline error type of err, or "" when err is not
// a PipelineError anywhere in its chain.
func TypeOf(err error) ErrorType {
	for err != nil {
		if pe, ok := err.(*PipelineError); ok {
			return pe.Type
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
