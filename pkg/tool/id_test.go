package tool

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateLicenseKey_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		key := GenerateLicenseKey()
		require.Regexp(t, pattern, key)
		_, dup := seen[key]
		require.False(t, dup, "duplicate key generated: %s", key)
		seen[key] = struct{}{}
	}
}

func TestGenerateUUIDV7_Unique(t *testing.T) {
	a := GenerateUUIDV7()
	b := GenerateUUIDV7()
	require.NotEqual(t, a, b)
	require.Len(t, a, 36)
}
