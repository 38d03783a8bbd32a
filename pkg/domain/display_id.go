package domain

import "fmt"

// FormatDisplayID renders a sequential display id such as ROI-000123.
// Sequences beyond six digits widen rather than truncate.
func FormatDisplayID(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%06d", prefix, seq)
}
