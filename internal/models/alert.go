package models

import (
	"strings"
	"time"
)

type EmergencyType string
type AlertPriority string
type DeliveryState string

const (
	EmergencyTypeGeneral EmergencyType = "general"
	EmergencyTypeMedical EmergencyType = "medical"
	EmergencyTypePolice  EmergencyType = "police"
	EmergencyTypeFire    EmergencyType = "fire"

	AlertPriorityHigh AlertPriority = "high"

	DeliveryStatePending   DeliveryState = "pending"
	DeliveryStateDelivered DeliveryState = "delivered"
	DeliveryStateQueued    DeliveryState = "queued"
	DeliveryStateAbandoned DeliveryState = "abandoned"
)

func (t EmergencyType) IsValid() bool {
	switch t {
	case EmergencyTypeGeneral, EmergencyTypeMedical, EmergencyTypePolice, EmergencyTypeFire:
		return true
	}
	return false
}

// ParseEmergencyType falls back to general for empty or unknown values.
func ParseEmergencyType(value string) EmergencyType {
	t := EmergencyType(strings.ToLower(strings.TrimSpace(value)))
	if t.IsValid() {
		return t
	}
	return EmergencyTypeGeneral
}

type UserProfile struct {
	Name              string             `json:"name,omitempty" bson:"name,omitempty"`
	Phone             string             `json:"phone,omitempty" bson:"phone,omitempty"`
	BloodGroup        string             `json:"bloodGroup,omitempty" bson:"blood_group,omitempty"`
	MedicalConditions []string           `json:"medicalConditions,omitempty" bson:"medical_conditions,omitempty"`
	Allergies         []string           `json:"allergies,omitempty" bson:"allergies,omitempty"`
	EmergencyContacts []EmergencyContact `json:"emergencyContacts,omitempty" bson:"emergency_contacts,omitempty"`
}

type DeviceInfo struct {
	DeviceID   string `json:"deviceId" bson:"device_id" validate:"max=128"`
	Platform   string `json:"platform" bson:"platform" validate:"max=32"`
	AppVersion string `json:"appVersion" bson:"app_version" validate:"max=32"`
}

type AlertLocation struct {
	Latitude  float64   `json:"latitude" bson:"latitude" validate:"latitude"`
	Longitude float64   `json:"longitude" bson:"longitude" validate:"longitude"`
	Accuracy  float64   `json:"accuracy" bson:"accuracy" validate:"gte=0"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Fallback  string    `json:"fallback,omitempty" bson:"fallback,omitempty"`
	Address   string    `json:"address,omitempty" bson:"address,omitempty"`
}

// Alert is one dispatch attempt. Only DeliveryState, QueuedAt and Attempts
// change after creation, and nothing changes once it is delivered.
type Alert struct {
	AlertID            string         `json:"alertId"`
	UserID             *string        `json:"userId"`
	CreatedAt          time.Time      `json:"createdAt"`
	Location           *AlertLocation `json:"location"`
	EmergencyType      EmergencyType  `json:"emergencyType"`
	Priority           AlertPriority  `json:"priority"`
	Message            string         `json:"message,omitempty"`
	ContactAllServices bool           `json:"contactAllServices,omitempty"`
	UserProfile        *UserProfile   `json:"userProfile,omitempty"`
	DeviceInfo         DeviceInfo     `json:"deviceInfo"`
	DeliveryState      DeliveryState  `json:"deliveryState"`
	QueuedAt           *time.Time     `json:"queuedAt"`
	Attempts           int            `json:"attempts"`
}

// SOSAlertPayload is the request body of POST /emergency/sos-alert. Location
// and UserID are serialized as null when absent, never omitted.
type SOSAlertPayload struct {
	UserID             *string        `json:"userId"`
	Timestamp          time.Time      `json:"timestamp" validate:"required"`
	Location           *AlertLocation `json:"location"`
	EmergencyType      EmergencyType  `json:"emergencyType" validate:"required,emergency_type"`
	UserProfile        *UserProfile   `json:"userProfile"`
	DeviceInfo         DeviceInfo     `json:"deviceInfo"`
	Priority           AlertPriority  `json:"priority" validate:"required,eq=high"`
	AlertID            string         `json:"alertId" validate:"required,alert_id"`
	Message            string         `json:"message,omitempty" validate:"max=500"`
	ContactAllServices bool           `json:"contactAllServices,omitempty"`
}

type SOSResponse struct {
	AlertID               string   `json:"alertId"`
	EstimatedResponseTime string   `json:"estimatedResponseTime"`
	ContactedServices     []string `json:"contactedServices"`
}

func (a *Alert) Payload() *SOSAlertPayload {
	return &SOSAlertPayload{
		UserID:             a.UserID,
		Timestamp:          a.CreatedAt,
		Location:           a.Location,
		EmergencyType:      a.EmergencyType,
		UserProfile:        a.UserProfile,
		DeviceInfo:         a.DeviceInfo,
		Priority:           a.Priority,
		AlertID:            a.AlertID,
		Message:            a.Message,
		ContactAllServices: a.ContactAllServices,
	}
}

func (a *Alert) IsDelivered() bool {
	return a.DeliveryState == DeliveryStateDelivered
}

func (a *Alert) MarkDelivered() {
	a.DeliveryState = DeliveryStateDelivered
}

func (a *Alert) MarkQueued(at time.Time) {
	if a.IsDelivered() {
		return
	}
	a.DeliveryState = DeliveryStateQueued
	a.QueuedAt = &at
}

func (a *Alert) MarkAbandoned() {
	if a.IsDelivered() {
		return
	}
	a.DeliveryState = DeliveryStateAbandoned
}
