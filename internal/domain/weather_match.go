package domain

import (
	"context"
	"time"
)

// DefaultWeatherLocation is the city-wide fallback used when a district has no row.
const DefaultWeatherLocation = "서울"

// WeatherLookup returns the stored row for (date, location), or nil when absent.
type WeatherLookup func(ctx context.Context, date time.Time, location string) (*WeatherDay, error)

// EventWeatherDate picks the calendar day used to match weather: start date,
// then end date, then registration date.
func EventWeatherDate(ev Event) (time.Time, bool) {
	for _, t := range []*time.Time{ev.StartDate, ev.EndDate, ev.RegisteredOn} {
		if t != nil {
			u := t.UTC()
			return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// WeatherForEvent finds the weather for an event's day. The location is the
// override, else the event's district, else DefaultWeatherLocation; a miss on a
// specific location retries with DefaultWeatherLocation.
func WeatherForEvent(ctx context.Context, ev Event, override string, lookup WeatherLookup) (*WeatherDay, error) {
	day, ok := EventWeatherDate(ev)
	if !ok {
		return nil, nil
	}

	location := override
	if location == "" && ev.Guname != nil {
		location = *ev.Guname
	}
	if location == "" {
		location = DefaultWeatherLocation
	}

	w, err := lookup(ctx, day, location)
	if err != nil || w != nil || location == DefaultWeatherLocation {
		return w, err
	}
	return lookup(ctx, day, DefaultWeatherLocation)
}
