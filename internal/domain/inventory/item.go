// Package inventory holds the client-side view of the user's grocery
// inventory. Items are owned by the backend; this package only models the
// read-through copy a page holds and the expiry bucketing rule applied to it.
package inventory

import "time"

// DateLayout is the wire format for expiry dates.
const DateLayout = "2006-01-02"

// Item is one inventory entry as returned by the backend.
type Item struct {
	ID         string `json:"_id"`
	Name       string `json:"item_name"`
	Image      string `json:"image"`
	ExpiryDate string `json:"expiry_date"`
	Quantity   int    `json:"quantity"`
	Unit       string `json:"unit"`
}

// ExpiryTime parses the item's expiry date. A malformed date parses to the
// zero time, which buckets as expired rather than hiding the item.
func (i Item) ExpiryTime() time.Time {
	t, err := time.Parse(DateLayout, i.ExpiryDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Status returns the expiry bucket for the item at the given wall-clock time.
func (i Item) Status(now time.Time) ExpiryStatus {
	return StatusOf(i.ExpiryTime(), now)
}
