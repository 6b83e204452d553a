package validators

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"telecare-sos/internal/models"
	"telecare-sos/internal/utils"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var phoneRegex = regexp.MustCompile(`^\+?[0-9]{3,15}$`)

func init() {
	validate = validator.New()

	// Report JSON field names so errors match the request body.
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	validate.RegisterValidation("emergency_type", validateEmergencyType)
	validate.RegisterValidation("alert_id", validateAlertID)
	validate.RegisterValidation("phone_number", validatePhoneNumber)
}

var (
	ErrInvalidEmergencyType = errors.New("invalid emergency type")
	ErrInvalidAlertID       = errors.New("invalid alert id")
	ErrInvalidPhoneNumber   = errors.New("invalid phone number format")
)

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var messages []string
	for _, err := range v {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

// Details flattens the errors into the response envelope's details map.
func (v ValidationErrors) Details() map[string]string {
	details := make(map[string]string, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

// ValidateStruct validates a struct and returns detailed errors
func ValidateStruct(s interface{}) ValidationErrors {
	var validationErrors ValidationErrors

	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return ValidationErrors{{Field: "body", Tag: "invalid", Message: err.Error()}}
	}

	for _, fieldErr := range fieldErrors {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fieldPath(fieldErr),
			Tag:     fieldErr.Tag(),
			Value:   fmt.Sprintf("%v", fieldErr.Value()),
			Message: getErrorMessage(fieldErr),
		})
	}

	return validationErrors
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(err validator.FieldError) string {
	ns := err.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
	case "eq":
		return fmt.Sprintf("%s must be %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "latitude":
		return "Latitude must be between -90 and 90"
	case "longitude":
		return "Longitude must be between -180 and 180"
	case "emergency_type":
		return "Emergency type must be one of general, medical, police, fire"
	case "alert_id":
		return "Alert ID must look like SOS_<millis>_<suffix>"
	case "phone_number":
		return "Invalid phone number format"
	default:
		return fmt.Sprintf("Validation failed for %s", err.Field())
	}
}

func validateEmergencyType(fl validator.FieldLevel) bool {
	return models.EmergencyType(fl.Field().String()).IsValid()
}

func validateAlertID(fl validator.FieldLevel) bool {
	return utils.IsAlertID(fl.Field().String())
}

func validatePhoneNumber(fl validator.FieldLevel) bool {
	phone := fl.Field().String()
	if phone == "" {
		return true // Let required tag handle empty values
	}
	return phoneRegex.MatchString(phone)
}

func SanitizeInput(input string) string {
	htmlRegex := regexp.MustCompile(`<[^>]*>`)
	cleaned := htmlRegex.ReplaceAllString(input, "")
	return strings.TrimSpace(cleaned)
}
