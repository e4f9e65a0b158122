package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seoulnow/seoulnow-etl/internal/domain"
	"github.com/seoulnow/seoulnow-etl/internal/pipeline"
)

type fakeEventSyncer struct {
	res domain.SyncResult
	err error
}

func (f *fakeEventSyncer) Run(context.Context) (domain.SyncResult, error) { return f.res, f.err }

type fakeWeatherSyncer struct {
	res domain.SyncResult
	err error
	got *pipeline.WeatherRequest
}

func (f *fakeWeatherSyncer) Run(_ context.Context, req pipeline.WeatherRequest) (domain.SyncResult, error) {
	f.got = &req
	return f.res, f.err
}

type fakeReader struct {
	events  map[int64]*domain.Event
	weather map[string]*domain.WeatherDay // "2006-01-02|location"
	err     error
}

func (f *fakeReader) GetEvent(_ context.Context, id int64) (*domain.Event, error) {
	return f.events[id], f.err
}

func (f *fakeReader) WeatherOn(_ context.Context, date time.Time, location string) (*domain.WeatherDay, error) {
	return f.weather[date.Format(time.DateOnly)+"|"+location], f.err
}

func newTestRouter(es EventSyncer, ws WeatherSyncer, r Reader) http.Handler {
	return NewRouter(es, ws, r, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestSyncEvents(t *testing.T) {
	es := &fakeEventSyncer{res: domain.SyncResult{Fetched: 1200, Transformed: 1199, Processed: 1199}}
	h := newTestRouter(es, &fakeWeatherSyncer{}, &fakeReader{})

	rec, body := do(t, h, http.MethodPost, "/api/events/sync")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"fetched": 1200.0, "processed": 1199.0}, body)
}

func TestSyncEvents_Errors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{
			name:   "network failure is bad gateway",
			err:    domain.NewNetworkError(domain.FeedEvents, "fetch page 1-1000", errors.New("status 503")),
			status: http.StatusBadGateway,
			detail: "events sync: network fetch page 1-1000: status 503",
		},
		{
			name:   "shape failure is bad gateway",
			err:    domain.NewShapeError(domain.FeedEvents, "fetch page 1-1000", errors.New("culturalEventInfo.row is not a list")),
			status: http.StatusBadGateway,
			detail: "events sync: shape fetch page 1-1000: culturalEventInfo.row is not a list",
		},
		{
			name:   "store failure is internal",
			err:    domain.NewStoreError(domain.FeedEvents, "upsert events 0-499", errors.New("password authentication failed")),
			status: http.StatusInternalServerError,
			detail: "store failure during events sync",
		},
		{
			name:   "untyped failure is internal",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			detail: "sync failed",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestRouter(&fakeEventSyncer{err: tc.err}, &fakeWeatherSyncer{}, &fakeReader{})
			rec, body := do(t, h, http.MethodPost, "/api/events/sync")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.detail, body["detail"])
		})
	}
}

func TestSyncWeather(t *testing.T) {
	ws := &fakeWeatherSyncer{res: domain.SyncResult{Fetched: 812, Transformed: 3, Processed: 3}}
	h := newTestRouter(&fakeEventSyncer{}, ws, &fakeReader{})

	rec, body := do(t, h, http.MethodPost,
		"/api/weather/sync?location=%EA%B0%95%EB%82%A8%EA%B5%AC&nx=61&ny=126&base_datetime=2024-05-01T06:30:00%2B09:00")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"fetched": 812.0, "days": 3.0, "processed": 3.0}, body)

	require.NotNil(t, ws.got)
	assert.Equal(t, "강남구", ws.got.Location)
	assert.Equal(t, 61, *ws.got.NX)
	assert.Equal(t, 126, *ws.got.NY)
	assert.True(t, ws.got.Reference.Equal(time.Date(2024, 4, 30, 21, 30, 0, 0, time.UTC)))
}

func TestSyncWeather_NaiveBaseDatetimeIsKST(t *testing.T) {
	ws := &fakeWeatherSyncer{}
	h := newTestRouter(&fakeEventSyncer{}, ws, &fakeReader{})

	rec, _ := do(t, h, http.MethodPost, "/api/weather/sync?base_datetime=2024-05-01T06:30:00")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ws.got.Reference)
	assert.True(t, ws.got.Reference.Equal(time.Date(2024, 4, 30, 21, 30, 0, 0, time.UTC)))
}

func TestSyncWeather_Defaults(t *testing.T) {
	ws := &fakeWeatherSyncer{}
	h := newTestRouter(&fakeEventSyncer{}, ws, &fakeReader{})

	rec, _ := do(t, h, http.MethodPost, "/api/weather/sync")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pipeline.WeatherRequest{}, *ws.got)
}

func TestSyncWeather_BadParams(t *testing.T) {
	for _, target := range []string{
		"/api/weather/sync?nx=abc",
		"/api/weather/sync?ny=-1",
		"/api/weather/sync?base_datetime=yesterday",
	} {
		t.Run(target, func(t *testing.T) {
			ws := &fakeWeatherSyncer{}
			h := newTestRouter(&fakeEventSyncer{}, ws, &fakeReader{})
			rec, body := do(t, h, http.MethodPost, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, body["detail"])
			assert.Nil(t, ws.got, "sync must not run")
		})
	}
}

func TestSyncWeather_UpstreamError(t *testing.T) {
	ws := &fakeWeatherSyncer{err: domain.NewShapeError(domain.FeedWeather, "fetch forecast", errors.New(`result "30": SERVICE_KEY_IS_NOT_REGISTERED_ERROR`))}
	h := newTestRouter(&fakeEventSyncer{}, ws, &fakeReader{})

	rec, body := do(t, h, http.MethodPost, "/api/weather/sync")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, body["detail"], "SERVICE_KEY_IS_NOT_REGISTERED_ERROR")
}

func testReader() *fakeReader {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	jongno := "종로구"
	mapo := "마포구"
	temp := 20.0
	return &fakeReader{
		events: map[int64]*domain.Event{
			150123: {ID: 150123, Title: "봄맞이 음악회", Guname: &jongno, StartDate: &start},
			150456: {ID: 150456, Title: "거리 축제", Guname: &mapo, StartDate: &start},
			150789: {ID: 150789, Title: "상설 전시"},
		},
		weather: map[string]*domain.WeatherDay{
			"2024-05-01|종로구": {Date: start.Truncate(24 * time.Hour), Location: "종로구", Temp: &temp},
			"2024-05-01|서울":  {Date: start.Truncate(24 * time.Hour), Location: "서울"},
		},
	}
}

func TestGetEvent(t *testing.T) {
	h := newTestRouter(&fakeEventSyncer{}, &fakeWeatherSyncer{}, testReader())

	rec, body := do(t, h, http.MethodGet, "/api/events/150123")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "봄맞이 음악회", body["title"])
	assert.Equal(t, "2024-05-01T10:00:00Z", body["start_date"])

	rec, body = do(t, h, http.MethodGet, "/api/events/1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Event not found", body["detail"])

	rec, _ = do(t, h, http.MethodGet, "/api/events/abc")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetEventWeather(t *testing.T) {
	h := newTestRouter(&fakeEventSyncer{}, &fakeWeatherSyncer{}, testReader())

	t.Run("district row", func(t *testing.T) {
		rec, body := do(t, h, http.MethodGet, "/api/events/150123/weather")
		require.Equal(t, http.StatusOK, rec.Code)
		w := body["weather"].(map[string]any)
		assert.Equal(t, "종로구", w["location"])
		assert.Equal(t, "2024-05-01", w["date"])
		assert.InDelta(t, 20.0, w["temp"], 1e-9)
	})

	t.Run("falls back to city-wide row", func(t *testing.T) {
		rec, body := do(t, h, http.MethodGet, "/api/events/150456/weather")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "서울", body["weather"].(map[string]any)["location"])
	})

	t.Run("undated event has no weather", func(t *testing.T) {
		rec, body := do(t, h, http.MethodGet, "/api/events/150789/weather")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, body["weather"])
		assert.Equal(t, "상설 전시", body["event"].(map[string]any)["title"])
	})

	t.Run("missing event", func(t *testing.T) {
		rec, _ := do(t, h, http.MethodGet, "/api/events/9/weather")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetWeather(t *testing.T) {
	h := newTestRouter(&fakeEventSyncer{}, &fakeWeatherSyncer{}, testReader())

	rec, body := do(t, h, http.MethodGet, "/api/weather?query_date=2024-05-01")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "서울", body["location"])

	rec, _ = do(t, h, http.MethodGet, "/api/weather?query_date=2024-05-02&location=%EC%A2%85%EB%A1%9C%EA%B5%AC")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/weather?query_date=May")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReaderError(t *testing.T) {
	h := newTestRouter(&fakeEventSyncer{}, &fakeWeatherSyncer{}, &fakeReader{err: errors.New("pool closed")})

	rec, body := do(t, h, http.MethodGet, "/api/events/1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "event lookup failed", body["detail"])
}
