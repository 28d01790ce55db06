package utils

import (
	"fmt"
	"math"
	"strings"
)

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// RoundToHalfBand snaps a raw model score to the IELTS band scale: half
// steps, clamped to [0, 9].
func RoundToHalfBand(score float64) float64 {
	rounded := math.Round(score*2) / 2
	if rounded < 0 {
		return 0
	}
	if rounded > 9 {
		return 9
	}
	return rounded
}

// WordCount counts whitespace-separated words, used against exercise word
// limits.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// RateLimitKey builds the per-user key for AI endpoint rate limiting.
func RateLimitKey(userID uint, path string) string {
	return fmt.Sprintf("rl:%d:%s", userID, path)
}
