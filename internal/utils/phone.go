package utils

import (
	"regexp"
	"strings"
)

var phoneFormatting = regexp.MustCompile(`[\s\-().]`)

// CleanPhone removes spacing and punctuation from a dialable number. Short
// service numbers such as 112 are left without a country prefix.
func CleanPhone(phone string) string {
	return phoneFormatting.ReplaceAllString(strings.TrimSpace(phone), "")
}

// MaskPhone hides all but the last four digits for logging.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
