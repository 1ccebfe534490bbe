package domain

import (
	"errors"
	"fmt"
)

// Category sentinels shared by every subsystem.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrDuplicate     = fmt.Errorf("duplicate")
	ErrTimeout       = fmt.Errorf("operation timed out")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrProviderError = fmt.Errorf("provider error")
)

// Sentinel errors for the domain layer.
var (
	ErrConfigLoad = fmt.Errorf("failed to load configuration")
	ErrDecryption = fmt.Errorf("decryption failed")
	ErrEncryption = fmt.Errorf("encryption operation failed")

	// Provider errors.
	ErrProviderNotFound   = fmt.Errorf("llm provider not found")
	ErrProviderDisabled   = fmt.Errorf("llm provider disabled")
	ErrMissingCredentials = fmt.Errorf("llm provider credentials missing")
	ErrStreamTruncated    = fmt.Errorf("stream ended before completion")

	// Resilience errors.
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")

	// Dialogue errors.
	ErrDuplicateStream      = fmt.Errorf("message id already streaming")
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)
	ErrMessageNotFound      = fmt.Errorf("message %w", ErrNotFound)

	// Window and menu errors.
	ErrWindowNotFound = fmt.Errorf("window %w", ErrNotFound)
	ErrMenuNotFound   = fmt.Errorf("menu %w", ErrNotFound)
	ErrMenuBusy       = fmt.Errorf("another menu is already shown")

	// Gateway / RPC errors.
	ErrGatewayAuthFailed = fmt.Errorf("gateway: %w", ErrAuthInvalid)
	ErrRPCMethodNotFound = fmt.Errorf("rpc method not found")
	ErrRPCInvalidPayload = fmt.Errorf("rpc payload invalid")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Dialogue.Start")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrContextOverflow)
}

// ErrorCode is a machine-parseable error category carried on gateway responses.
type ErrorCode string

const (
	CodeUnknown             ErrorCode = "UNKNOWN"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeDuplicate           ErrorCode = "DUPLICATE"
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodeInvalidInput        ErrorCode = "INVALID_INPUT"
	CodeProviderError       ErrorCode = "PROVIDER_ERROR"
	CodeConfigLoad          ErrorCode = "CONFIG_LOAD"
	CodeDecryption          ErrorCode = "DECRYPTION"
	CodeEncryption          ErrorCode = "ENCRYPTION"
	CodeProviderNotFound    ErrorCode = "PROVIDER_NOT_FOUND"
	CodeProviderDisabled    ErrorCode = "PROVIDER_DISABLED"
	CodeMissingCredentials  ErrorCode = "MISSING_CREDENTIALS"
	CodeStreamTruncated     ErrorCode = "STREAM_TRUNCATED"
	CodeContextOverflow     ErrorCode = "CONTEXT_OVERFLOW"
	CodeRateLimit           ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid         ErrorCode = "AUTH_INVALID"
	CodeDuplicateStream     ErrorCode = "DUPLICATE_STREAM"
	CodeConversationMissing ErrorCode = "CONVERSATION_NOT_FOUND"
	CodeMessageMissing      ErrorCode = "MESSAGE_NOT_FOUND"
	CodeWindowNotFound      ErrorCode = "WINDOW_NOT_FOUND"
	CodeMenuNotFound        ErrorCode = "MENU_NOT_FOUND"
	CodeMenuBusy            ErrorCode = "MENU_BUSY"
	CodeGatewayAuth         ErrorCode = "GATEWAY_AUTH"
	CodeRPCMethodNotFound   ErrorCode = "RPC_METHOD_NOT_FOUND"
	CodeRPCInvalidPayload   ErrorCode = "RPC_INVALID_PAYLOAD"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
// Specific sentinels that wrap a category sentinel are listed in
// errorCodeOrder ahead of the category so the most specific code wins.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:             CodeNotFound,
	ErrDuplicate:            CodeDuplicate,
	ErrTimeout:              CodeTimeout,
	ErrInvalidInput:         CodeInvalidInput,
	ErrProviderError:        CodeProviderError,
	ErrConfigLoad:           CodeConfigLoad,
	ErrDecryption:           CodeDecryption,
	ErrEncryption:           CodeEncryption,
	ErrProviderNotFound:     CodeProviderNotFound,
	ErrProviderDisabled:     CodeProviderDisabled,
	ErrMissingCredentials:   CodeMissingCredentials,
	ErrStreamTruncated:      CodeStreamTruncated,
	ErrContextOverflow:      CodeContextOverflow,
	ErrRateLimit:            CodeRateLimit,
	ErrAuthInvalid:          CodeAuthInvalid,
	ErrDuplicateStream:      CodeDuplicateStream,
	ErrConversationNotFound: CodeConversationMissing,
	ErrMessageNotFound:      CodeMessageMissing,
	ErrWindowNotFound:       CodeWindowNotFound,
	ErrMenuNotFound:         CodeMenuNotFound,
	ErrMenuBusy:             CodeMenuBusy,
	ErrGatewayAuthFailed:    CodeGatewayAuth,
	ErrRPCMethodNotFound:    CodeRPCMethodNotFound,
	ErrRPCInvalidPayload:    CodeRPCInvalidPayload,
}

var errorCodeOrder = []error{
	ErrConversationNotFound,
	ErrMessageNotFound,
	ErrWindowNotFound,
	ErrMenuNotFound,
	ErrGatewayAuthFailed,
	ErrProviderNotFound,
	ErrProviderDisabled,
	ErrMissingCredentials,
	ErrStreamTruncated,
	ErrContextOverflow,
	ErrRateLimit,
	ErrAuthInvalid,
	ErrDuplicateStream,
	ErrMenuBusy,
	ErrConfigLoad,
	ErrDecryption,
	ErrEncryption,
	ErrRPCMethodNotFound,
	ErrRPCInvalidPayload,
	ErrNotFound,
	ErrDuplicate,
	ErrTimeout,
	ErrInvalidInput,
	ErrProviderError,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	// Fast path: direct sentinel lookup.
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	for _, sentinel := range errorCodeOrder {
		if errors.Is(err, sentinel) {
			return errorCodeMap[sentinel]
		}
	}
	return CodeUnknown
}
