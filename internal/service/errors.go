package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/quote-translator/pkg/log"
)

type ErrorType int

const (
	ErrFileNotFound ErrorType = iota
	ErrFileRead
	ErrFileWrite
	ErrParse
	ErrAPI
	ErrValidation
	ErrConfig
	ErrNetwork
	ErrTranslation
	ErrUnknown
)

type ServiceError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *ServiceError {
	return &ServiceError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *ServiceError {
	return &ServiceError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *ServiceError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

func (e *ServiceError) WithContext(key string, value any) *ServiceError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrFileNotFound:
		return "FileNotFound"
	case ErrFileRead:
		return "FileRead"
	case ErrFileWrite:
		return "FileWrite"
	case ErrParse:
		return "Parse"
	case ErrAPI:
		return "API"
	case ErrValidation:
		return "Validation"
	case ErrConfig:
		return "Config"
	case ErrNetwork:
		return "Network"
	case ErrTranslation:
		return "Translation"
	default:
		return "Unknown"
	}
}

// Advice returns a hint for the operator on how to fix err.
func Advice(err *ServiceError) string {
	switch err.Type {
	case ErrFileNotFound:
		return "Check that the file path is correct and the file exists"
	case ErrFileRead:
		return "Check file permissions and that the file is not corrupted"
	case ErrFileWrite:
		return "Ensure the output directory exists and is writable"
	case ErrParse:
		return "Quotes must be a JSON array of {id, quote, author} with unique ids"
	case ErrAPI:
		return "Check the API key, the model name and the provider status"
	case ErrNetwork:
		return "Check network connectivity to LLM_API_URL"
	case ErrValidation:
		return "Check the command arguments"
	case ErrConfig:
		return "Set LLM_API_KEY (or OPENAI_API_KEY) and check the other environment variables"
	case ErrTranslation:
		return "Inspect the failed tasks with 'journal failures' when JOURNAL_DB is set"
	default:
		return "Review the error details and the configuration"
	}
}

// Report logs err with advice. It returns false for errors that are not
// a *ServiceError.
func Report(err error) bool {
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		log.Error("Unknown Error: %v", err)
		return false
	}
	log.Error("Error Detail: %v\n advice: %s", err, Advice(svcErr))
	return true
}

func IsErrorType(err error, errorType ErrorType) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *ServiceError {
	return NewErrorWithCause(errorType, message, err)
}
