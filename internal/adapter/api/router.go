// Package api exposes the sync triggers and the event read path over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seoulnow/seoulnow-etl/internal/domain"
	"github.com/seoulnow/seoulnow-etl/internal/pipeline"
)

// EventSyncer runs an events sync.
type EventSyncer interface {
	Run(ctx context.Context) (domain.SyncResult, error)
}

// WeatherSyncer runs a weather sync.
type WeatherSyncer interface {
	Run(ctx context.Context, req pipeline.WeatherRequest) (domain.SyncResult, error)
}

// Reader serves stored rows. Absent rows are (nil, nil).
type Reader interface {
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
	WeatherOn(ctx context.Context, date time.Time, location string) (*domain.WeatherDay, error)
}

type handler struct {
	events  EventSyncer
	weather WeatherSyncer
	reader  Reader
	logger  *slog.Logger
}

// NewRouter builds the /api engine.
func NewRouter(events EventSyncer, weather WeatherSyncer, reader Reader, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	h := &handler{events: events, weather: weather, reader: reader, logger: logger}

	g := r.Group("/api")
	g.POST("/events/sync", h.syncEvents)
	g.GET("/events/:id", h.getEvent)
	g.GET("/events/:id/weather", h.getEventWeather)
	g.POST("/weather/sync", h.syncWeather)
	g.GET("/weather", h.getWeather)

	return r
}

type eventSyncResponse struct {
	Fetched   int `json:"fetched"`
	Processed int `json:"processed"`
}

type weatherSyncResponse struct {
	Fetched   int `json:"fetched"`
	Days      int `json:"days"`
	Processed int `json:"processed"`
}

type weatherResponse struct {
	Date     string   `json:"date"`
	Location string   `json:"location"`
	Temp     *float64 `json:"temp"`
	RainProb *float64 `json:"rain_prob"`
	PM10     *int     `json:"pm10"`
}

type eventWeatherResponse struct {
	Event   *domain.Event    `json:"event"`
	Weather *weatherResponse `json:"weather"`
}

func toWeatherResponse(w *domain.WeatherDay) *weatherResponse {
	if w == nil {
		return nil
	}
	return &weatherResponse{
		Date:     w.Date.Format(time.DateOnly),
		Location: w.Location,
		Temp:     w.Temp,
		RainProb: w.RainProb,
		PM10:     w.PM10,
	}
}

func (h *handler) syncEvents(c *gin.Context) {
	res, err := h.events.Run(c.Request.Context())
	if err != nil {
		h.syncFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, eventSyncResponse{Fetched: res.Fetched, Processed: res.Processed})
}

func (h *handler) syncWeather(c *gin.Context) {
	var req pipeline.WeatherRequest
	req.Location = c.Query("location")

	for _, p := range []struct {
		name string
		dst  **int
	}{{"nx", &req.NX}, {"ny", &req.NY}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			detail(c, http.StatusBadRequest, p.name+" must be a positive integer")
			return
		}
		*p.dst = &n
	}

	if raw := c.Query("base_datetime"); raw != "" {
		ref, err := domain.ParseReferenceTime(raw)
		if err != nil {
			detail(c, http.StatusBadRequest, "base_datetime must be an ISO 8601 datetime")
			return
		}
		req.Reference = &ref
	}

	res, err := h.weather.Run(c.Request.Context(), req)
	if err != nil {
		h.syncFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, weatherSyncResponse{Fetched: res.Fetched, Days: res.Transformed, Processed: res.Processed})
}

func (h *handler) getEvent(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *handler) getEventWeather(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}

	w, err := domain.WeatherForEvent(c.Request.Context(), *ev, c.Query("location"), h.reader.WeatherOn)
	if err != nil {
		h.logger.Error("weather lookup failed", "event_id", ev.ID, "error", err)
		detail(c, http.StatusInternalServerError, "weather lookup failed")
		return
	}
	c.JSON(http.StatusOK, eventWeatherResponse{Event: ev, Weather: toWeatherResponse(w)})
}

func (h *handler) getWeather(c *gin.Context) {
	day, err := time.Parse(time.DateOnly, c.Query("query_date"))
	if err != nil {
		detail(c, http.StatusBadRequest, "query_date must be YYYY-MM-DD")
		return
	}
	location := c.DefaultQuery("location", domain.DefaultWeatherLocation)

	w, err := h.reader.WeatherOn(c.Request.Context(), day, location)
	if err != nil {
		h.logger.Error("weather lookup failed", "date", day.Format(time.DateOnly), "location", location, "error", err)
		detail(c, http.StatusInternalServerError, "weather lookup failed")
		return
	}
	if w == nil {
		detail(c, http.StatusNotFound, "Weather data not found")
		return
	}
	c.JSON(http.StatusOK, toWeatherResponse(w))
}

func (h *handler) loadEvent(c *gin.Context) (*domain.Event, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "event id must be an integer")
		return nil, false
	}
	ev, err := h.reader.GetEvent(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("event lookup failed", "event_id", id, "error", err)
		detail(c, http.StatusInternalServerError, "event lookup failed")
		return nil, false
	}
	if ev == nil {
		detail(c, http.StatusNotFound, "Event not found")
		return nil, false
	}
	return ev, true
}

// syncFailed maps upstream failures to 502 and everything else to 500.
func (h *handler) syncFailed(c *gin.Context, err error) {
	var se *domain.SyncError
	switch {
	case domain.IsUpstreamFailure(err):
		detail(c, http.StatusBadGateway, err.Error())
	case errors.As(err, &se):
		detail(c, http.StatusInternalServerError, string(se.Kind)+" failure during "+se.Feed+" sync")
	default:
		detail(c, http.StatusInternalServerError, "sync failed")
	}
}

func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}
