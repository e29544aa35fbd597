package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
)

// ErrorCategory defines the type of error for proper handling
type ErrorCategory string

const (
	CategoryMissingInput     ErrorCategory = "missing_input"
	CategoryValidation       ErrorCategory = "validation"
	CategoryUnsupportedMedia ErrorCategory = "unsupported_media"
	CategoryPayloadTooLarge  ErrorCategory = "payload_too_large"
	CategoryNotFound         ErrorCategory = "not_found"
	CategoryConflict         ErrorCategory = "conflict"
	CategoryUnauthorized     ErrorCategory = "unauthorized"
	CategoryRateLimit        ErrorCategory = "rate_limit"
	CategoryScorerContract   ErrorCategory = "scorer_contract"
	CategoryScorerTimeout    ErrorCategory = "scorer_timeout"
	CategoryPersistence      ErrorCategory = "persistence"
	CategoryInternal         ErrorCategory = "internal"
)

// GenericMessage is what callers see for any internal failure.
const GenericMessage = "Internal server error"

// AppError wraps an errbuilder error with the category and HTTP status it maps to
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
	StackTrace string        `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Category, e.ErrBuilder.Msg)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// Internal reports whether the error is a server-side failure whose details
// must stay out of responses.
func (e *AppError) Internal() bool {
	switch e.Category {
	case CategoryScorerContract, CategoryScorerTimeout, CategoryPersistence, CategoryInternal:
		return true
	default:
		return e.HTTPStatus >= http.StatusInternalServerError
	}
}

// Response returns the client-facing body. Internal errors are reduced to
// internalMsg (or GenericMessage when empty).
func (e *AppError) Response(internalMsg string) gin.H {
	msg := e.ErrBuilder.Msg
	if e.Internal() {
		msg = internalMsg
		if msg == "" {
			msg = GenericMessage
		}
	}
	return gin.H{
		"message":  msg,
		"category": e.Category,
	}
}

// NewAppError creates an AppError from errbuilder with additional context
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

func withDetail(builder *errbuilder.ErrBuilder, key, value string) *errbuilder.ErrBuilder {
	if value == "" {
		return builder
	}
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set(key, errors.New(value))
	return builder.WithDetails(errbuilder.NewErrDetails(errorMap))
}

// NewMissingInputError reports a required field that was absent or empty
func NewMissingInputError(message string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)

	return NewAppError(builder, CategoryMissingInput, http.StatusBadRequest)
}

// NewValidationError creates a validation error using errbuilder
func NewValidationError(message string, details ...interface{}) *AppError {
	detailStr := ""
	if len(details) > 0 {
		detailStr = fmt.Sprintf("%v", details[0])
	}

	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)
	builder = withDetail(builder, "validation_details", detailStr)

	return NewAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// NewUnsupportedMediaError rejects payloads outside the accepted content types
func NewUnsupportedMediaError(message, detectedType string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)
	builder = withDetail(builder, "detected_type", detectedType)

	return NewAppError(builder, CategoryUnsupportedMedia, http.StatusUnsupportedMediaType)
}

// NewPayloadTooLargeError rejects payloads above limit bytes
func NewPayloadTooLargeError(size, limit int64) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("Image exceeds the %d byte limit", limit))
	builder = withDetail(builder, "size", fmt.Sprintf("%d", size))

	return NewAppError(builder, CategoryPayloadTooLarge, http.StatusRequestEntityTooLarge)
}

// NewNotFoundError reports a missing font or user
func NewNotFoundError(message string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(message)

	return NewAppError(builder, CategoryNotFound, http.StatusNotFound)
}

// NewConflictError reports a uniqueness violation such as a taken username
func NewConflictError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeAlreadyExists).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryConflict, http.StatusConflict)
}

// NewUnauthorizedError reports failed authentication
func NewUnauthorizedError(message string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnauthenticated).
		WithMsg(message)

	return NewAppError(builder, CategoryUnauthorized, http.StatusUnauthorized)
}

// NewRateLimitError creates a rate limit error using errbuilder
func NewRateLimitError(retryAfter string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg("Rate limit exceeded")
	builder = withDetail(builder, "retry_after", retryAfter)

	return NewAppError(builder, CategoryRateLimit, http.StatusTooManyRequests)
}

// NewScorerContractError reports a scorer that returned an out-of-range value
func NewScorerContractError(field string, value int) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(fmt.Sprintf("scorer returned %s=%d outside [0,100]", field, value))

	return internal(builder, CategoryScorerContract)
}

// NewScorerTimeoutError reports a scorer call that ran past its deadline
func NewScorerTimeoutError(timeout time.Duration, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeDeadlineExceeded).
		WithMsg(fmt.Sprintf("scorer did not finish within %s", timeout))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return internal(builder, CategoryScorerTimeout)
}

// NewPersistenceError reports a failed repository or storage write
func NewPersistenceError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return internal(builder, CategoryPersistence)
}

// NewInternalError creates an internal server error using errbuilder
func NewInternalError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return internal(builder, CategoryInternal)
}

func internal(builder *errbuilder.ErrBuilder, category ErrorCategory) *AppError {
	appErr := NewAppError(builder, category, http.StatusInternalServerError)

	// Capture stack trace in development/debug mode
	if gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode {
		appErr.StackTrace = captureStackTrace()
	}

	return appErr
}

// captureStackTrace captures a stack trace for debugging
func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// Is reports whether err is an AppError of the given category
func Is(err error, category ErrorCategory) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category == category
	}
	return false
}

// ToAppError converts any error to an AppError
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var ebErr *errbuilder.ErrBuilder
	if errors.As(err, &ebErr) {
		return internal(ebErr, CategoryInternal)
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return NewPayloadTooLargeError(maxBytesErr.Limit+1, maxBytesErr.Limit)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewInternalError("Request deadline exceeded", err)
	}

	if errors.Is(err, context.Canceled) {
		return NewInternalError("Request cancelled", err)
	}

	return NewInternalError("An unexpected error occurred", err)
}

// Respond logs err and writes its client-facing form. internalMsg replaces
// the message of internal failures.
func Respond(c *gin.Context, err error, internalMsg string) {
	appErr := ToAppError(err)
	LogError(c, appErr)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response(internalMsg))
}

// LogError logs an error with appropriate level and context
func LogError(c *gin.Context, err *AppError) {
	logEntry := slog.With(
		"error_category", err.Category,
		"error_code", err.ErrBuilder.ErrCode(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetString("request_id"),
	)

	errorMsg := err.ErrBuilder.Msg
	errorDetails := err.ErrBuilder.Details

	if !err.Internal() {
		if len(errorDetails.Errors) > 0 {
			logEntry.Warn(errorMsg, "details", errorDetails.Errors)
		} else {
			logEntry.Warn(errorMsg)
		}
		return
	}

	if cause := err.ErrBuilder.Unwrap(); cause != nil {
		logEntry.Error(errorMsg, "cause", cause)
	} else {
		logEntry.Error(errorMsg)
	}

	if err.StackTrace != "" && (gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode) {
		logEntry.Debug("stack_trace", "trace", err.StackTrace)
	}
}

// ErrorHandler is a Gin middleware that turns errors attached with c.Error
// into structured responses
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := ToAppError(c.Errors.Last().Err)
		LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr.Response(""))
	}
}

// RecoveryHandler provides panic recovery with structured error responses
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		appErr := NewInternalError(
			fmt.Sprintf("Panic recovered: %v", recovered),
			fmt.Errorf("%v", recovered),
		)
		appErr.StackTrace = captureStackTrace()

		LogError(c, appErr)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response(""))
	})
}
