// Package errors provides the error taxonomy shared by the console, the JSON
// API and the BPMN worker.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Raised before submission; never reaches the network boundary.
	ErrCodeApplicantValidationFailed ErrorCode = "APPLICANT_VALIDATION_FAILED"

	// Network unreachable, timeout or a malformed response body.
	ErrCodePredictionTransportFailed ErrorCode = "PREDICTION_TRANSPORT_FAILED"
	// Non-2xx status from the prediction service.
	ErrCodePredictionServerError ErrorCode = "PREDICTION_SERVER_ERROR"

	ErrCodeSubmissionInProgress   ErrorCode = "SUBMISSION_IN_PROGRESS"
	ErrCodeInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"
	ErrCodeSessionStoreFailed     ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeNotificationFailed     ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error. Message is the
// user-visible text; Details carries diagnostics for logs.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return e.Message
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// String is the log form including the code.
func (e *StandardError) String() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// BPMNError represents an error thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for Camunda job variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// NewApplicantValidationError reports how many fields failed. Metadata
// carries the per-field messages under "fields".
func NewApplicantValidationError(fields map[string]string) *StandardError {
	meta := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		meta[k] = v
	}
	return &StandardError{
		Code:      ErrCodeApplicantValidationFailed,
		Message:   "Applicant data is invalid",
		Details:   fmt.Sprintf("%d invalid field(s)", len(fields)),
		Retryable: false,
		Metadata:  map[string]interface{}{"fields": meta},
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportError surfaces the underlying transport message to the user.
func NewTransportError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictionTransportFailed,
		Message:   err.Error(),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewMalformedResponseError is a TransportError for an unusable 2xx body.
func NewMalformedResponseError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictionTransportFailed,
		Message:   "malformed response from risk assessment service",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewServerError is distinguished from a TransportError only by its text.
func NewServerError(status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictionServerError,
		Message:   fmt.Sprintf("HTTP error! status: %d", status),
		Details:   body,
		Retryable: true,
		Metadata:  map[string]interface{}{"status": status},
		Timestamp: time.Now().UTC(),
	}
}

func NewSubmissionInProgressError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionInProgress,
		Message:   "An assessment is already in progress",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidTransitionError(from, event string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidStateTransition,
		Message:   fmt.Sprintf("cannot %s while %s", event, from),
		Details:   fmt.Sprintf("from: %s, event: %s", from, event),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionStoreError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreFailed,
		Message:   "Session storage is unavailable",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewNotificationFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// AsStandard extracts a *StandardError anywhere in the chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns ErrCodeInternal for errors outside the taxonomy.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeApplicantValidationFailed
}

func IsTransport(err error) bool {
	return CodeOf(err) == ErrCodePredictionTransportFailed
}

func IsServer(err error) bool {
	return CodeOf(err) == ErrCodePredictionServerError
}

// IsPrediction reports a failure at the prediction boundary (transport or
// server); both route to the Failed transition.
func IsPrediction(err error) bool {
	return IsTransport(err) || IsServer(err)
}

// UserMessage is the text shown in a failure notification.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if stdErr, ok := AsStandard(err); ok && stdErr.Message != "" {
		return stdErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return DefaultFailureMessage
}

const DefaultFailureMessage = "Failed to connect to the risk assessment service. Please ensure the backend is running."

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeApplicantValidationFailed: "APPLICANT_VALIDATION_FAILED",
	ErrCodePredictionTransportFailed: "PREDICTION_TRANSPORT_FAILED",
	ErrCodePredictionServerError:     "PREDICTION_SERVER_ERROR",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodePredictionTransportFailed:
		return 3
	case ErrCodePredictionServerError:
		return 2
	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if fields, ok := stdErr.Metadata["fields"]; ok {
		vars["validationErrors"] = fields
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}
