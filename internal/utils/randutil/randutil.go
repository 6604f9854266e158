package randutil

import "strings"

// MaskString hides everything but the first visibleStart and last
// visibleEnd characters of a secret.
func MaskString(secret string, visibleStart, visibleEnd int) string {
	if len(secret) <= visibleStart+visibleEnd {
		return strings.Repeat("*", len(secret))
	}

	start := secret[:visibleStart]
	end := secret[len(secret)-visibleEnd:]
	return start + strings.Repeat("*", len(secret)-(visibleStart+visibleEnd)) + end
}
