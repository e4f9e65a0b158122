package domain

import (
	"fmt"
	"strings"
	"time"
)

// KST is Korea Standard Time. Korea observes no DST, so a fixed zone suffices.
var KST = time.FixedZone("KST", 9*60*60)

// IssuanceHours is the KMA village forecast publication schedule, in KST.
var IssuanceHours = []int{2, 5, 8, 11, 14, 17, 20, 23}

// Issuance identifies one forecast batch as the KMA API addresses it.
type Issuance struct {
	BaseDate string // YYYYMMDD
	BaseTime string // HH00
}

// SelectIssuance returns the latest scheduled issuance at or before reference
// (converted to KST). Before 02:00 it falls back to 23:00 of the previous day.
func SelectIssuance(reference time.Time) Issuance {
	now := reference.In(KST)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, KST)

	for i := len(IssuanceHours) - 1; i >= 0; i-- {
		if now.Hour() >= IssuanceHours[i] {
			return newIssuance(day, IssuanceHours[i])
		}
	}
	return newIssuance(day.AddDate(0, 0, -1), IssuanceHours[len(IssuanceHours)-1])
}

func newIssuance(day time.Time, hour int) Issuance {
	return Issuance{
		BaseDate: day.Format("20060102"),
		BaseTime: fmt.Sprintf("%02d00", hour),
	}
}

// naiveReferenceLayouts are accepted without an offset and read as KST.
var naiveReferenceLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
}

// ParseReferenceTime parses an issuance reference time: RFC3339 with an offset,
// or an ISO datetime without one, taken as KST.
func ParseReferenceTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveReferenceLayouts {
		if t, err := time.ParseInLocation(layout, s, KST); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid reference time %q: want an ISO 8601 datetime", s)
}
