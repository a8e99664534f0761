package tool

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GenerateLicenseKey returns a fresh token in the XXXX-XXXX-XXXX-XXXX format
// handed out to desktop installations.
func GenerateLicenseKey() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("%s-%s-%s-%s", raw[0:4], raw[4:8], raw[8:12], raw[12:16])
}
