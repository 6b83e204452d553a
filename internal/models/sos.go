package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SOSStatus string

const (
	SOSStatusActive     SOSStatus = "active"
	SOSStatusResolved   SOSStatus = "resolved"
	SOSStatusFalseAlarm SOSStatus = "false_alarm"
)

// SOSRecord is the backend's stored copy of a received alert.
type SOSRecord struct {
	ID                    primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	AlertID               string             `json:"alertId" bson:"alert_id"`
	UserID                *string            `json:"userId" bson:"user_id"`
	EmergencyType         EmergencyType      `json:"emergencyType" bson:"emergency_type"`
	Priority              AlertPriority      `json:"priority" bson:"priority"`
	Status                SOSStatus          `json:"status" bson:"status"`
	Location              *AlertLocation     `json:"location" bson:"location"`
	Message               string             `json:"message,omitempty" bson:"message,omitempty"`
	UserProfile           *UserProfile       `json:"userProfile,omitempty" bson:"user_profile,omitempty"`
	DeviceInfo            DeviceInfo         `json:"deviceInfo" bson:"device_info"`
	ContactedServices     []string           `json:"contactedServices" bson:"contacted_services"`
	EstimatedResponseTime string             `json:"estimatedResponseTime" bson:"estimated_response_time"`
	AlertedAt             time.Time          `json:"alertedAt" bson:"alerted_at"`
	CreatedAt             time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt             time.Time          `json:"updatedAt" bson:"updated_at"`
	ResolvedAt            *time.Time         `json:"resolvedAt,omitempty" bson:"resolved_at,omitempty"`
}

func (r *SOSRecord) Response() *SOSResponse {
	return &SOSResponse{
		AlertID:               r.AlertID,
		EstimatedResponseTime: r.EstimatedResponseTime,
		ContactedServices:     r.ContactedServices,
	}
}

// SystemCheck is the result of the backend's diagnostic self-check.
type SystemCheck struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	CheckedAt  time.Time         `json:"checkedAt"`
}

func (s *SystemCheck) Healthy() bool {
	return s != nil && s.Status == "healthy"
}
