// Package errors contains the error taxonomy shared by the session,
// loader and decryption packages, and helpers to classify errors.
package errors

import (
	"context"
	"errors"
	"net/http"
)

// Category defines error category
type Category int

const (
	// CategoryNoError is used when no error category applies.
	CategoryNoError Category = iota
	// CategoryLibraryLoad No usable relayer SDK was found from any source.
	CategoryLibraryLoad
	// CategorySDKInit The relayer SDK one-time initialization failed.
	CategorySDKInit
	// CategoryInvalidConfig A resolved infrastructure address or other
	// session input failed validation.
	CategoryInvalidConfig
	// CategoryNetwork A JSON-RPC call failed. The cause is wrapped.
	CategoryNetwork
	// CategoryAborted Cancellation was observed at a suspension point.
	// Never retried automatically.
	CategoryAborted
	// CategorySignature The signer declined to sign or the instance could not
	// build the authorization structure.
	CategorySignature
	// CategoryDataError The caller sent invalid data.
	CategoryDataError
	// CategoryNotSupported The requested functionality is not supported
	CategoryNotSupported
	// CategoryGeneralError The service failed in an unexpected way
	CategoryGeneralError
)

func (c Category) String() string {
	switch c {
	case CategoryLibraryLoad:
		return "LibraryLoadError"
	case CategorySDKInit:
		return "SdkInitError"
	case CategoryInvalidConfig:
		return "InvalidConfigError"
	case CategoryNetwork:
		return "NetworkError"
	case CategoryAborted:
		return "AbortError"
	case CategorySignature:
		return "SignatureError"
	case CategoryDataError:
		return "DataError"
	case CategoryNotSupported:
		return "NotSupportedError"
	default:
		return "GeneralError"
	}
}

// ServiceError represents service specific type that
// is used all over the services.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

// Error method to comply with error interface
func (err ServiceError) Error() string {
	if err.Err != nil {
		if err.Message != "" {
			return err.Message + ": " + err.Err.Error()
		}
		return err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is implements the custom condition to check an error is equal to a service error
func (err ServiceError) Is(target error) bool {
	return err.Message == target.Error()
}

// Is checks that provided error is a ServiceError with desired Category
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Category == cat {
		return true
	}
	return false
}

// CategoryOf returns the category of the outermost ServiceError in the chain,
// or CategoryGeneralError when err carries none.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryNoError
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Category
	}
	return CategoryGeneralError
}

func newError(cat Category, err error, message string) error {
	if err == nil {
		err = errors.New(message)
		message = ""
	}
	return &ServiceError{
		Category: cat,
		Message:  message,
		Err:      err,
	}
}

// LibraryLoadError returns an error with category CategoryLibraryLoad
func LibraryLoadError(err error, message string) error {
	return newError(CategoryLibraryLoad, err, message)
}

// SDKInitError returns an error with category CategorySDKInit
func SDKInitError(err error, message string) error {
	return newError(CategorySDKInit, err, message)
}

// InvalidConfigError returns an error with category CategoryInvalidConfig
func InvalidConfigError(err error, message string) error {
	return newError(CategoryInvalidConfig, err, message)
}

// NetworkError returns an error with category CategoryNetwork.
// Context cancellation of the underlying call is reported as AbortedError.
func NetworkError(err error, message string) error {
	if errors.Is(err, context.Canceled) {
		return AbortedError(err)
	}
	return newError(CategoryNetwork, err, message)
}

// AbortedError returns an error with category CategoryAborted
func AbortedError(err error) error {
	if err == nil {
		err = context.Canceled
	}
	return &ServiceError{
		Category: CategoryAborted,
		Message:  "FHEVM operation was cancelled",
		Err:      err,
	}
}

// SignatureError returns an error with category CategorySignature
func SignatureError(err error, message string) error {
	return newError(CategorySignature, err, message)
}

// BadRequestError returns an error with category DataError
func BadRequestError(err error, message string) error {
	return newError(CategoryDataError, err, message)
}

// NotSupportedError returns an error with category NotSupported
func NotSupportedError(err error, message string) error {
	return newError(CategoryNotSupported, err, message)
}

// GeneralError returns a general service error
func GeneralError(err error) error {
	if err == nil {
		err = errors.New("internal server error")
	}
	return &ServiceError{
		Category: CategoryGeneralError,
		Message:  "Internal Server Error",
		Err:      err,
	}
}

// StatusCode returns the HTTP status code for the error category
func (err ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryDataError, CategoryInvalidConfig:
		return http.StatusBadRequest
	case CategorySignature:
		return http.StatusUnauthorized
	case CategoryNotSupported:
		return http.StatusMethodNotAllowed
	case CategoryNetwork, CategoryLibraryLoad:
		return http.StatusBadGateway
	case CategoryAborted:
		return http.StatusRequestTimeout
	case CategorySDKInit:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// StatusCode returns the HTTP status code for any error.
func StatusCode(err error) int {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode()
	}
	return http.StatusInternalServerError
}
