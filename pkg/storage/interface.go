package storage

import (
	"context"
	"errors"
)

// Store is the persistent key-value surface used for the cached location and
// the offline alert queue. Get reports found=false for a missing key; that
// is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

var ErrInvalidKey = errors.New("invalid storage key")

const (
	KeyLastKnownLocation = "lastKnownLocation"
	KeyOfflineQueue      = "emergency_offline_queue"
)
