package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so a sentinel still
// matches after WithError produced a copy of it.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Invalid or missing session token",
		StatusCode: 401,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Not allowed for the logged in user",
		StatusCode: 403,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Rate limit exceeded, please try again later",
		StatusCode: 429,
	}

	// Biometric engine errors

	ErrDimensionMismatch = &AppError{
		Code:       "DIMENSION_MISMATCH",
		Message:    "Feature vectors come from incompatible extraction methods",
		StatusCode: 422,
	}

	ErrUnknownUser = &AppError{
		Code:       "UNKNOWN_USER",
		Message:    "User not found in directory",
		StatusCode: 404,
	}

	ErrDeviceBusy = &AppError{
		Code:       "DEVICE_BUSY",
		Message:    "Capture device is held by another session",
		StatusCode: 409,
	}

	ErrDirectoryIO = &AppError{
		Code:       "DIRECTORY_IO_ERROR",
		Message:    "User directory could not be read or written",
		StatusCode: 503,
	}

	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected in the frame",
		StatusCode: 422,
	}

	ErrMultipleFaces = &AppError{
		Code:       "MULTIPLE_FACES",
		Message:    "Multiple faces detected, a single face is required",
		StatusCode: 422,
	}

	ErrSessionExpired = &AppError{
		Code:       "SESSION_EXPIRED",
		Message:    "Session deadline reached",
		StatusCode: 408,
	}

	// Account and session errors

	ErrUserExists = &AppError{
		Code:       "USER_EXISTS",
		Message:    "Username already exists",
		StatusCode: 409,
	}

	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Invalid username or password",
		StatusCode: 401,
	}

	ErrSessionNotFound = &AppError{
		Code:       "SESSION_NOT_FOUND",
		Message:    "Session not found or already reaped",
		StatusCode: 404,
	}

	ErrInvalidSessionState = &AppError{
		Code:       "INVALID_SESSION_STATE",
		Message:    "Operation not allowed in the current session state",
		StatusCode: 409,
	}

	ErrLowConfidence = &AppError{
		Code:       "LOW_CONFIDENCE",
		Message:    "Match confidence too low to log in",
		StatusCode: 403,
	}

	ErrInvalidProfile = &AppError{
		Code:       "INVALID_PROFILE",
		Message:    "Matching profile is invalid",
		StatusCode: 500,
	}
)
