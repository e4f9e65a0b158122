package domain

import (
	"time"
)

// RawRecord is one upstream row: fixed uppercase keys mapped to loosely typed
// values (string, json.Number, bool, nil). No field is guaranteed present.
type RawRecord map[string]any

// Event is the normalized form of a culturalEventInfo row. ID is the natural key.
type Event struct {
	ID        int64   `json:"id"`
	Codename  *string `json:"codename"`
	Guname    *string `json:"guname"` // district
	Title     string  `json:"title"`
	Date      *string `json:"date"` // display string, e.g. "2024-05-01~2024-05-03"
	Place     *string `json:"place"`
	OrgName   *string `json:"org_name"`
	UseTarget *string `json:"use_trgt"`
	UseFee    *string `json:"use_fee"`
	Player    *string `json:"player"`
	Program   *string `json:"program"`
	EtcDesc   *string `json:"etc_desc"`
	Ticket    *string `json:"ticket"`
	ThemeCode *string `json:"theme_code"`
	OrgLink   *string `json:"org_link"`
	MainImg   *string `json:"main_img"`
	HmpgAddr  *string `json:"hmpg_addr"`
	IsFree    *string `json:"is_free"`

	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
	RegisteredOn *time.Time `json:"rgst_date"`

	Lot *float64 `json:"lot"`
	Lat *float64 `json:"lat"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WeatherDay is one aggregated forecast row. (Date, Location) is the natural key.
type WeatherDay struct {
	Date     time.Time `json:"date"` // midnight UTC of the forecast day
	Location string    `json:"location"`
	Temp     *float64  `json:"temp"`
	RainProb *float64  `json:"rain_prob"`
	PM10     *int      `json:"pm10"`
}

// ForecastSample is a single forecast item for one category.
type ForecastSample struct {
	FcstDate string // YYYYMMDD
	Category string
	Value    any
}

// ForecastRequest addresses one forecast issuance for one grid cell.
type ForecastRequest struct {
	BaseDate string // YYYYMMDD
	BaseTime string // HH00
	NX, NY   int
}

// Forecast categories consumed by AggregateForecast.
const (
	CategoryTemperature = "TMP"
	CategoryRainProb    = "POP"
	CategoryPM10        = "PM10"
)

// Feed names used in results, errors, logs, and metric labels.
const (
	FeedEvents  = "events"
	FeedWeather = "weather"
)

// SyncResult summarizes one sync run. It is returned to the caller, never stored.
type SyncResult struct {
	Feed        string        `json:"feed"`
	RunID       string        `json:"run_id"`
	Fetched     int           `json:"fetched"`
	Transformed int           `json:"transformed"` // events normalized, or weather days aggregated
	Skipped     int           `json:"skipped"`
	Processed   int           `json:"processed"`
	Location    string        `json:"location,omitempty"` // weather only
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"-"`
}
