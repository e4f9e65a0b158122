package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// UntitledEventTitle replaces a missing TITLE so the row is kept rather than dropped.
const UntitledEventTitle = "제목 미정"

// Raw culturalEventInfo keys.
const (
	fieldCultCode  = "CULTCODE"
	fieldCodename  = "CODENAME"
	fieldGuname    = "GUNAME"
	fieldTitle     = "TITLE"
	fieldDate      = "DATE"
	fieldStartDate = "STRTDATE"
	fieldEndDate   = "END_DATE"
	fieldPlace     = "PLACE"
	fieldOrgName   = "ORG_NAME"
	fieldUseTarget = "USE_TRGT"
	fieldUseFee    = "USE_FEE"
	fieldPlayer    = "PLAYER"
	fieldProgram   = "PROGRAM"
	fieldEtcDesc   = "ETC_DESC"
	fieldTicket    = "TICKET"
	fieldThemeCode = "THEMECODE"
	fieldOrgLink   = "ORG_LINK"
	fieldMainImg   = "MAIN_IMG"
	fieldHmpgAddr  = "HMPG_ADDR"
	fieldRgstDate  = "RGSTDATE"
	fieldLot       = "LOT"
	fieldLat       = "LAT"
	fieldIsFree    = "IS_FREE"
)

// timestampLayouts are tried in order before falling back to dateparse.
var timestampLayouts = []string{
	"2006-1-2 15:04",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04:05.999999",
}

var dateLayouts = []string{
	"2006-1-2",
	"20060102",
}

var errNilRecord = errors.New("record is not an object")

// NormalizeEvent maps a raw culturalEventInfo row onto an Event. now stamps both
// CreatedAt and UpdatedAt; the store keeps the first CreatedAt on conflict.
// Malformed optional fields become nil; only a nil record is an error.
func NormalizeEvent(rec RawRecord, now time.Time) (Event, error) {
	if rec == nil {
		return Event{}, NewRecordError(FeedEvents, "normalize", errNilRecord)
	}

	title := rec.str(fieldTitle)
	if title == nil {
		t := UntitledEventTitle
		title = &t
	}

	now = now.UTC()
	return Event{
		ID:           ResolveEventID(rec),
		Codename:     rec.str(fieldCodename),
		Guname:       rec.str(fieldGuname),
		Title:        *title,
		Date:         rec.str(fieldDate),
		StartDate:    ParseTimestamp(rec.str(fieldStartDate)),
		EndDate:      ParseTimestamp(rec.str(fieldEndDate)),
		Place:        rec.str(fieldPlace),
		OrgName:      rec.str(fieldOrgName),
		UseTarget:    rec.str(fieldUseTarget),
		UseFee:       rec.str(fieldUseFee),
		Player:       rec.str(fieldPlayer),
		Program:      rec.str(fieldProgram),
		EtcDesc:      rec.str(fieldEtcDesc),
		Ticket:       rec.str(fieldTicket),
		ThemeCode:    rec.str(fieldThemeCode),
		OrgLink:      rec.str(fieldOrgLink),
		MainImg:      rec.str(fieldMainImg),
		HmpgAddr:     rec.str(fieldHmpgAddr),
		RegisteredOn: ParseDate(rec.str(fieldRgstDate)),
		Lot:          ParseFloat(rec.str(fieldLot)),
		Lat:          ParseFloat(rec.str(fieldLat)),
		IsFree:       rec.str(fieldIsFree),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEvents normalizes a batch. Records that fail are dropped and their
// errors returned alongside the events that succeeded.
func NormalizeEvents(recs []RawRecord, now time.Time) ([]Event, []error) {
	events := make([]Event, 0, len(recs))
	var skipped []error
	for i, rec := range recs {
		ev, err := NormalizeEvent(rec, now)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		events = append(events, ev)
	}
	return events, skipped
}

// str returns the trimmed string form of key, or nil when missing or blank.
func (r RawRecord) str(key string) *string {
	s, ok := stringify(r[key])
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// int64Field parses key as an integer; floats are truncated.
func (r RawRecord) int64Field(key string) (int64, bool) {
	switch v := r[key].(type) {
	case nil:
		return 0, false
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		f, err := v.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int64(f), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func stringify(v any) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return fmt.Sprint(v), true
	}
}

// ParseTimestamp parses an upstream timestamp into UTC. Naive values are taken
// as UTC wall time. Returns nil when nothing matches; never errors.
func ParseTimestamp(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t
		}
	}
	t, err := dateparse.ParseIn(*s, time.UTC)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// ParseDate parses YYYY-MM-DD or YYYYMMDD into midnight UTC, or nil.
func ParseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t
		}
	}
	return nil
}

// ParseFloat parses a decimal string, or returns nil for anything non-numeric.
func ParseFloat(s *string) *float64 {
	if s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
