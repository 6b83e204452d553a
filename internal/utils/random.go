package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	lowerBytes   = "abcdefghijklmnopqrstuvwxyz"
	numberBytes  = "0123456789"
	alphanumeric = lowerBytes + numberBytes
)

func GenerateRandomString(length int) string {
	return generateRandom(length, alphanumeric)
}

func generateRandom(length int, charset string) string {
	result := make([]byte, length)
	charsetLength := big.NewInt(int64(len(charset)))

	for i := range result {
		num, _ := rand.Int(rand.Reader, charsetLength)
		result[i] = charset[num.Int64()]
	}

	return string(result)
}

// GenerateAlertID builds SOS_<unix millis>_<random suffix>. Uniqueness is
// probabilistic, which is enough for at-least-once delivery.
func GenerateAlertID(now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", AlertIDPrefix, now.UnixMilli(), GenerateRandomString(AlertIDSuffixLength))
}

func IsAlertID(id string) bool {
	parts := strings.Split(id, "_")
	return len(parts) == 3 && parts[0] == AlertIDPrefix && parts[1] != "" && len(parts[2]) == AlertIDSuffixLength
}
