package domain

import (
	"crypto/sha1" //nolint:gosec // identity digest, not a security boundary
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// homepageIDParam is matched case-insensitively in HMPG_ADDR query strings.
const homepageIDParam = "cultcode"

// ResolveEventID derives the stable event identity:
//  1. the native CULTCODE field,
//  2. the cultcode query parameter of HMPG_ADDR,
//  3. SHA-1 of TITLE|STRTDATE|END_DATE|PLACE (absent parts skipped), first
//     12 hex characters read as base 16.
//
// Step 3 collides for distinct events sharing all four fields, and any edit to
// them yields a new identity.
func ResolveEventID(rec RawRecord) int64 {
	if id, ok := rec.int64Field(fieldCultCode); ok {
		return id
	}
	if id, ok := homepageEventID(rec.str(fieldHmpgAddr)); ok {
		return id
	}
	return digestEventID(rec)
}

// rawQuery returns the query part of addr. A URL that does not parse still
// yields whatever follows the first '?', up to any fragment.
func rawQuery(addr string) string {
	if u, err := url.Parse(addr); err == nil {
		return u.RawQuery
	}
	_, q, _ := strings.Cut(addr, "?")
	q, _, _ = strings.Cut(q, "#")
	return q
}

func homepageEventID(addr *string) (int64, bool) {
	if addr == nil {
		return 0, false
	}
	query, err := url.ParseQuery(rawQuery(*addr))
	if err != nil && len(query) == 0 {
		return 0, false
	}
	keys := make([]string, 0, 1)
	for key := range query {
		if strings.EqualFold(key, homepageIDParam) {
			keys = append(keys, key)
		}
	}
	// lowercase spelling first, so the choice is stable when several variants appear
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	for _, key := range keys {
		for _, v := range query[key] {
			if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}

func digestEventID(rec RawRecord) int64 {
	parts := make([]string, 0, 4)
	for _, key := range []string{fieldTitle, fieldStartDate, fieldEndDate, fieldPlace} {
		if s := rec.str(key); s != nil {
			parts = append(parts, *s)
		}
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|"))) //nolint:gosec
	id, _ := strconv.ParseInt(hex.EncodeToString(sum[:])[:12], 16, 64)
	return id
}
