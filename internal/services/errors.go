package services

import (
	"errors"
	"fmt"

	"telecare-sos/internal/models"
)

var (
	ErrSOSBusy          = errors.New("sos is already in progress")
	ErrNoLocationSource = errors.New("no location source configured")
)

type LocationErrorCode string

const (
	LocationErrorTimeout          LocationErrorCode = "timeout"
	LocationErrorServicesDisabled LocationErrorCode = "services_disabled"
	LocationErrorPermissionDenied LocationErrorCode = "permission_denied"
	LocationErrorUnknown          LocationErrorCode = "unknown"
)

type CacheErrorCode string

const (
	CacheErrorStale      CacheErrorCode = "stale"
	CacheErrorMissing    CacheErrorCode = "missing"
	CacheErrorUnreadable CacheErrorCode = "unreadable"
)

type PermissionError struct {
	Status  models.PermissionStatus
	Message string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("location permission %s: %s", e.Status, e.Message)
}

type LocationError struct {
	Code LocationErrorCode
	Err  error
}

func (e *LocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("location unavailable (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("location unavailable (%s)", e.Code)
}

func (e *LocationError) Unwrap() error {
	return e.Err
}

// CacheError reports why the cached fix could not be used. Stale carries the
// expired fix so callers may still show it.
type CacheError struct {
	Code  CacheErrorCode
	Stale *models.Position
	Err   error
}

func (e *CacheError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cached location %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("cached location %s", e.Code)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func IsPermissionError(err error) bool {
	var permErr *PermissionError
	return errors.As(err, &permErr)
}

func LocationErrorCodeOf(err error) (LocationErrorCode, bool) {
	var locErr *LocationError
	if errors.As(err, &locErr) {
		return locErr.Code, true
	}
	return "", false
}
