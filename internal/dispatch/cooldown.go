package dispatch

import "time"

// Eligible reports whether an alert may fire again at now. The cooldown
// is measured from the last successful notification, not from alert
// creation: an alert that never fired is always eligible. Reaching the
// boundary exactly counts as eligible.
func Eligible(lastNotifiedAt *time.Time, cooldown time.Duration, now time.Time) bool {
	if lastNotifiedAt == nil {
		return true
	}
	return now.Sub(*lastNotifiedAt) >= cooldown
}
