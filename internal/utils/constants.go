package utils

import "time"

// Application Constants
const (
	AppName    = "TelecareSOS"
	AppVersion = "1.0.0"

	// Authentication
	JWTAccessTokenTTL = 24 * time.Hour
	UserTypePatient   = "patient"
	UserTypeOperator  = "operator"
	UserTypeAdmin     = "admin"

	// Emergency
	AlertIDPrefix       = "SOS"
	AlertIDSuffixLength = 9
	MaxAlertMessageLen  = 500

	// Response status
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error messages
const (
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "unauthorized"
	ErrForbidden        = "forbidden"
	ErrValidationFailed = "validation failed"
)
