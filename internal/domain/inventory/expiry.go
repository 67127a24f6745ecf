package inventory

import "time"

// ExpiryStatus is one of four severity buckets derived from days until
// expiry. Bucket boundaries are closed on the lower bound: an item expiring
// in exactly 3 days is expiring soon, in exactly 7 days fresh-near.
type ExpiryStatus int

const (
	StatusExpired ExpiryStatus = iota
	StatusExpiringSoon
	StatusFreshNear
	StatusFresh
)

const hoursPerDay = 24

// StatusOf maps an expiry timestamp to its bucket relative to now.
func StatusOf(expiry, now time.Time) ExpiryStatus {
	days := DaysUntil(expiry, now)
	switch {
	case days <= 0:
		return StatusExpired
	case days <= 3:
		return StatusExpiringSoon
	case days <= 7:
		return StatusFreshNear
	default:
		return StatusFresh
	}
}

// DaysUntil returns the fractional number of days between now and expiry.
// Negative once the expiry timestamp has passed.
func DaysUntil(expiry, now time.Time) float64 {
	return expiry.Sub(now).Hours() / hoursPerDay
}

// Label is the badge text shown for the bucket. The two fresh buckets share
// a label and differ only in severity and weight.
func (s ExpiryStatus) Label() string {
	switch s {
	case StatusExpired:
		return "Expired"
	case StatusExpiringSoon:
		return "Expiring Soon"
	default:
		return "Fresh"
	}
}

// Severity is the display variant for the bucket.
func (s ExpiryStatus) Severity() string {
	switch s {
	case StatusExpired:
		return "danger"
	case StatusExpiringSoon:
		return "warning"
	case StatusFreshNear:
		return "info"
	default:
		return "success"
	}
}

// Weight is the progress-bar fill percentage for the bucket.
func (s ExpiryStatus) Weight() int {
	switch s {
	case StatusExpired:
		return 100
	case StatusExpiringSoon:
		return 75
	case StatusFreshNear:
		return 50
	default:
		return 25
	}
}

func (s ExpiryStatus) String() string {
	switch s {
	case StatusExpired:
		return "expired"
	case StatusExpiringSoon:
		return "expiring-soon"
	case StatusFreshNear:
		return "fresh-near"
	default:
		return "fresh"
	}
}
