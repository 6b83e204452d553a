package models

type EmergencyService string

const (
	EmergencyServicePolice    EmergencyService = "police"
	EmergencyServiceAmbulance EmergencyService = "ambulance"
	EmergencyServiceFire      EmergencyService = "fire"
	EmergencyServiceGeneral   EmergencyService = "general_emergency"
	EmergencyServicePersonal  EmergencyService = "personal"
)

type EmergencyContact struct {
	ID           string           `json:"id,omitempty" bson:"_id,omitempty"`
	UserID       string           `json:"userId,omitempty" bson:"user_id,omitempty"`
	Name         string           `json:"name" bson:"name" validate:"max=100"`
	Number       string           `json:"number" bson:"number" validate:"required,phone_number"`
	Service      EmergencyService `json:"service" bson:"service"`
	Relationship string           `json:"relationship,omitempty" bson:"relationship,omitempty"`
	Priority     int              `json:"priority" bson:"priority"`
}

func (c EmergencyContact) IsPersonal() bool {
	return c.Service == EmergencyServicePersonal
}

// DefaultEmergencyContacts is the national helpline list used whenever the
// user's own contacts cannot be fetched.
func DefaultEmergencyContacts() []EmergencyContact {
	return []EmergencyContact{
		{Name: "Police", Number: "100", Service: EmergencyServicePolice, Priority: 1},
		{Name: "Ambulance", Number: "108", Service: EmergencyServiceAmbulance, Priority: 1},
		{Name: "Fire", Number: "101", Service: EmergencyServiceFire, Priority: 1},
		{Name: "General Emergency", Number: "112", Service: EmergencyServiceGeneral, Priority: 0},
	}
}

// GeneralEmergencyNumber returns the number offered by the dialer fallback.
func GeneralEmergencyNumber(contacts []EmergencyContact) string {
	for _, c := range contacts {
		if c.Service == EmergencyServiceGeneral {
			return c.Number
		}
	}
	return "112"
}
