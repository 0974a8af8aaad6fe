// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"errors"
	"fmt"
)

// ErrorType represents the semantic category of an error
type ErrorType int

const (
	ErrorTypeValidation       ErrorType = iota // Input validation errors (400 Bad Request)
	ErrorTypeNotFound                          // Resource not found errors (404 Not Found)
	ErrorTypeConflict                          // Resource conflict errors (409 Conflict)
	ErrorTypeInternal                          // Internal server errors (500 Internal Server Error)
	ErrorTypeUnavailable                       // Service unavailable errors (503 Service Unavailable)
	ErrorTypeForbidden                         // Caller may not perform the operation (403 Forbidden)
	ErrorTypeCapacityExceeded                  // Meeting is full (409 Conflict, code capacity_exceeded)
	ErrorTypeMeetingEnded                      // Meeting was ended by its host (410 Gone)
	ErrorTypeSignature                         // Webhook signature rejected (401 Unauthorized)
)

var errorTypeCodes = map[ErrorType]string{
	ErrorTypeValidation:       "validation_error",
	ErrorTypeNotFound:         "not_found",
	ErrorTypeConflict:         "conflict",
	ErrorTypeInternal:         "internal_error",
	ErrorTypeUnavailable:      "unavailable",
	ErrorTypeForbidden:        "forbidden",
	ErrorTypeCapacityExceeded: "capacity_exceeded",
	ErrorTypeMeetingEnded:     "meeting_ended",
	ErrorTypeSignature:        "invalid_signature",
}

// Code is the machine-readable error code sent to clients.
func (t ErrorType) Code() string {
	if code, ok := errorTypeCodes[t]; ok {
		return code
	}
	return errorTypeCodes[ErrorTypeInternal]
}

func (t ErrorType) String() string {
	return t.Code()
}

// DomainError represents an error with semantic type information
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error // underlying error for wrapping
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// GetErrorType returns the semantic type of an error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal // default fallback
}

// Error constructors for different types
func NewValidationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeValidation, Message: message, Err: errors.Join(err...)}
}

func NewNotFoundError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeNotFound, Message: message, Err: errors.Join(err...)}
}

func NewConflictError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeConflict, Message: message, Err: errors.Join(err...)}
}

func NewInternalError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeInternal, Message: message, Err: errors.Join(err...)}
}

func NewUnavailableError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeUnavailable, Message: message, Err: errors.Join(err...)}
}

func NewForbiddenError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeForbidden, Message: message, Err: errors.Join(err...)}
}

func NewMeetingEndedError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeMeetingEnded, Message: message, Err: errors.Join(err...)}
}

func NewSignatureError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeSignature, Message: message, Err: errors.Join(err...)}
}

// CapacityExceededError is returned when a join would push a meeting past its
// active-participant ceiling.
type CapacityExceededError struct {
	MeetingUID string
	Limit      int
	Active     int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("meeting %s is full: %d of %d participants active", e.MeetingUID, e.Active, e.Limit)
}

// Unwrap exposes the typed domain error so GetErrorType classifies it.
func (e *CapacityExceededError) Unwrap() error {
	return &DomainError{Type: ErrorTypeCapacityExceeded, Message: "meeting is at capacity"}
}

// NewCapacityExceededError builds a CapacityExceededError.
func NewCapacityExceededError(meetingUID string, limit, active int) *CapacityExceededError {
	return &CapacityExceededError{MeetingUID: meetingUID, Limit: limit, Active: active}
}
