package validators

import (
	"time"

	"telecare-sos/internal/models"
	"telecare-sos/internal/utils"
)

// maxClockSkew bounds how far in the future a device timestamp may be.
const maxClockSkew = 5 * time.Minute

// ValidateSOSAlert checks an incoming alert. The message is sanitized in
// place; nothing else is rewritten.
func ValidateSOSAlert(payload *models.SOSAlertPayload, now time.Time) ValidationErrors {
	payload.Message = SanitizeInput(payload.Message)

	errs := ValidateStruct(payload)
	if !payload.Timestamp.IsZero() && payload.Timestamp.After(now.Add(maxClockSkew)) {
		errs = append(errs, ValidationError{
			Field:   "timestamp",
			Tag:     "not_future",
			Value:   payload.Timestamp.Format(time.RFC3339),
			Message: "timestamp is in the future",
		})
	}
	return errs
}

// ValidateContact checks a contact before it is stored for a user.
func ValidateContact(contact *models.EmergencyContact) ValidationErrors {
	contact.Name = SanitizeInput(contact.Name)
	contact.Number = utils.CleanPhone(contact.Number)

	errs := ValidateStruct(contact)
	if contact.Service == "" {
		contact.Service = models.EmergencyServicePersonal
	}
	return errs
}
