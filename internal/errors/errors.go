package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeInput    ErrorType = "input"
	ErrorTypeService  ErrorType = "service"
	ErrorTypeParse    ErrorType = "parse"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInputError reports missing or malformed persona, question or request data.
func NewInputError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInput, code, message, cause)
}

// NewServiceError reports a failed call to the generative model service.
func NewServiceError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeService, code, message, cause)
}

// NewParseError reports model output that did not match the expected structure.
func NewParseError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeParse, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// TypeOf returns the category of err, or ErrorTypeInternal for foreign errors.
func TypeOf(err error) ErrorType {
	if appErr, ok := As(err); ok {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsNotFound reports whether err describes a missing persona, response set or file.
func IsNotFound(err error) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	switch appErr.Code {
	case ErrCodeFileNotFound, ErrCodePersonaNotFound, ErrCodeResponsesNotFound:
		return true
	}
	return false
}

// UserMessage renders err as the single line shown at the CLI or HTTP boundary.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	appErr, ok := As(err)
	if !ok {
		return err.Error()
	}
	switch appErr.Type {
	case ErrorTypeInput:
		return "invalid input: " + appErr.Message
	case ErrorTypeService:
		if appErr.Cause != nil {
			return fmt.Sprintf("generative service failed: %s: %v", appErr.Message, appErr.Cause)
		}
		return "generative service failed: " + appErr.Message
	case ErrorTypeParse:
		return "could not parse model output: " + appErr.Message
	case ErrorTypeIO:
		if appErr.Cause != nil {
			return fmt.Sprintf("file operation failed: %s: %v", appErr.Message, appErr.Cause)
		}
		return "file operation failed: " + appErr.Message
	case ErrorTypeConfig:
		return "configuration error: " + appErr.Message
	default:
		return appErr.Message
	}
}

// Logger wraps slog with application-specific methods
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new structured logger on stderr, leaving stdout to command output
func NewLogger(level slog.Level) *Logger {
	return NewLoggerWithWriter(os.Stderr, level)
}

// NewLoggerWithWriter creates a structured logger writing JSON lines to w.
func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(w, opts)
	return &Logger{logger: slog.New(handler)}
}

// Discard returns a logger that drops everything, for tests.
func Discard() *Logger {
	return NewLoggerWithWriter(io.Discard, slog.LevelError+1)
}

// LogError logs an application error with appropriate level and context
func (l *Logger) LogError(err error, message string, args ...any) {
	if appErr, ok := As(err); ok {
		logArgs := []any{
			"error_type", appErr.Type,
			"error_code", appErr.Code,
			"error_message", appErr.Message,
		}
		if appErr.Cause != nil {
			logArgs = append(logArgs, "cause", appErr.Cause.Error())
		}

		for key, value := range appErr.Context {
			logArgs = append(logArgs, key, value)
		}

		logArgs = append(logArgs, args...)

		l.logger.Error(message, logArgs...)
	} else {
		logArgs := append([]any{"error", err.Error()}, args...)
		l.logger.Error(message, logArgs...)
	}
}

func (l *Logger) Info(message string, args ...any) {
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	l.logger.Warn(message, args...)
}

// With returns a logger that always includes the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

// New creates a new logger instance
func New(level string) (*Logger, error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	return NewLogger(slogLevel), nil
}

// Common error codes
const (
	ErrCodeFileNotFound      = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable   = "FILE_NOT_READABLE"
	ErrCodeFileNotWritable   = "FILE_NOT_WRITABLE"
	ErrCodeInvalidFormat     = "INVALID_FORMAT"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidPersona    = "INVALID_PERSONA"
	ErrCodeEmptyQuestions    = "EMPTY_QUESTIONS"
	ErrCodeQuestionMismatch  = "QUESTION_MISMATCH"
	ErrCodePersonaNotFound   = "PERSONA_NOT_FOUND"
	ErrCodeResponsesNotFound = "RESPONSES_NOT_FOUND"
	ErrCodeAIServiceFailed   = "AI_SERVICE_FAILED"
	ErrCodeAITimeout         = "AI_TIMEOUT"
	ErrCodeAIParseFailed     = "AI_PARSE_FAILED"
	ErrCodeMissingAPIKey     = "MISSING_API_KEY"
	ErrCodeNetworkTimeout    = "NETWORK_TIMEOUT"
	ErrCodeInvalidConfig     = "INVALID_CONFIG"
	ErrCodePathLocked        = "PATH_LOCKED"
)
