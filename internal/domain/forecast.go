package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

type dayBucket struct {
	date      time.Time
	temps     []float64
	rainProbs []float64
	pm10      *int
}

// AggregateForecast collapses forecast samples into one WeatherDay per calendar
// date for location: mean TMP, max POP, and the last digit-only PM10 value seen
// for the day. Samples without a parseable YYYYMMDD date are skipped and counted.
// Days are returned in date order.
func AggregateForecast(samples []ForecastSample, location string) ([]WeatherDay, int) {
	buckets := make(map[string]*dayBucket)
	skipped := 0

	for _, s := range samples {
		day, err := time.Parse("20060102", s.FcstDate)
		if err != nil {
			skipped++
			continue
		}
		b, ok := buckets[s.FcstDate]
		if !ok {
			b = &dayBucket{date: day}
			buckets[s.FcstDate] = b
		}

		switch s.Category {
		case CategoryTemperature:
			if v, ok := sampleFloat(s.Value); ok {
				b.temps = append(b.temps, v)
			}
		case CategoryRainProb:
			if v, ok := sampleFloat(s.Value); ok {
				b.rainProbs = append(b.rainProbs, v)
			}
		case CategoryPM10:
			// Last sample wins; a non-numeric one keeps the previous value.
			if v, ok := sampleDigits(s.Value); ok {
				b.pm10 = &v
			}
		}
	}

	days := make([]WeatherDay, 0, len(buckets))
	for _, b := range buckets {
		days = append(days, WeatherDay{
			Date:     b.date,
			Location: location,
			Temp:     mean(b.temps),
			RainProb: maxOf(b.rainProbs),
			PM10:     b.pm10,
		})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, skipped
}

func sampleFloat(v any) (float64, bool) {
	s, ok := stringify(v)
	if !ok {
		return 0, false
	}
	f := ParseFloat(&s)
	if f == nil {
		return 0, false
	}
	return *f, true
}

// sampleDigits accepts only an unsigned, untrimmed run of ASCII digits.
func sampleDigits(v any) (int, bool) {
	s, ok := stringify(v)
	if !ok || s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func mean(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	m := sum / float64(len(vals))
	return &m
}

func maxOf(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return &m
}
