package models

import (
	"time"
)

type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"

	LocationFallbackCached = "cached"
)

// Position is a device fix. CapturedAt is when the fix was taken, not when it
// was read from the cache.
type Position struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	Altitude   *float64  `json:"altitude,omitempty"`
	CapturedAt time.Time `json:"capturedAt"`
	Fallback   string    `json:"fallback,omitempty"`
	Address    string    `json:"address,omitempty"`
}

func (p *Position) Age(now time.Time) time.Duration {
	return now.Sub(p.CapturedAt)
}

func (p *Position) IsCached() bool {
	return p.Fallback == LocationFallbackCached
}

func (p *Position) ToAlertLocation() *AlertLocation {
	if p == nil {
		return nil
	}
	return &AlertLocation{
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Accuracy:  p.Accuracy,
		Timestamp: p.CapturedAt,
		Fallback:  p.Fallback,
		Address:   p.Address,
	}
}
