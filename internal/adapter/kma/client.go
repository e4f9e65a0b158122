// Package kma fetches the short-term village forecast (getVilageFcst) from the
// Korea Meteorological Administration API.
package kma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/seoulnow/seoulnow-etl/internal/domain"
)

const (
	endpoint   = "getVilageFcst"
	numOfRows  = 1000
	resultOK   = "00"
	unknownMsg = "unknown error from KMA API"
)

// JSONGetter is the transport used for the forecast request; *feed.Client satisfies it.
type JSONGetter interface {
	GetJSON(ctx context.Context, op, rawURL string, query url.Values, dest any) error
}

// Client calls the village forecast endpoint.
type Client struct {
	getter     JSONGetter
	base       string
	serviceKey string
}

// NewClient creates a forecast client for the given API base and service key.
func NewClient(getter JSONGetter, base, serviceKey string) *Client {
	return &Client{getter: getter, base: strings.TrimRight(base, "/"), serviceKey: serviceKey}
}

// envelope defers the body so the header is checked before anything else is
// assumed about the response.
type envelope struct {
	Response *struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body json.RawMessage `json:"body"`
	} `json:"response"`
}

type body struct {
	Items json.RawMessage `json:"items"`
}

type items struct {
	Item any `json:"item"`
}

// FetchForecast issues a single request (first page, up to 1000 items) and
// returns the object items as samples. A resultCode other than "00" is a shape
// error carrying resultMsg.
func (c *Client) FetchForecast(ctx context.Context, req domain.ForecastRequest) ([]domain.ForecastSample, error) {
	op := fmt.Sprintf("fetch forecast %s %s (%d,%d)", req.BaseDate, req.BaseTime, req.NX, req.NY)

	query := url.Values{
		"serviceKey": {c.serviceKey},
		"pageNo":     {"1"},
		"numOfRows":  {strconv.Itoa(numOfRows)},
		"dataType":   {"JSON"},
		"base_date":  {req.BaseDate},
		"base_time":  {req.BaseTime},
		"nx":         {strconv.Itoa(req.NX)},
		"ny":         {strconv.Itoa(req.NY)},
	}

	var env envelope
	if err := c.getter.GetJSON(ctx, op, c.base+"/"+endpoint, query, &env); err != nil {
		return nil, err
	}
	if env.Response == nil {
		return nil, domain.NewShapeError(domain.FeedWeather, op, errors.New(unknownMsg))
	}
	if h := env.Response.Header; h.ResultCode != resultOK {
		msg := h.ResultMsg
		if msg == "" {
			msg = unknownMsg
		}
		return nil, domain.NewShapeError(domain.FeedWeather, op, fmt.Errorf("result %q: %s", h.ResultCode, msg))
	}

	list, err := itemList(env.Response.Body)
	if err != nil {
		return nil, domain.NewShapeError(domain.FeedWeather, op, err)
	}

	samples := make([]domain.ForecastSample, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		samples = append(samples, domain.ForecastSample{
			FcstDate: stringField(obj, "fcstDate"),
			Category: stringField(obj, "category"),
			Value:    obj["fcstValue"],
		})
	}
	return samples, nil
}

// itemList digs response.body.items.item out of the raw body. Absent levels
// yield no items.
func itemList(raw json.RawMessage) ([]any, error) {
	var b body
	if err := decodeNumbers(raw, &b); err != nil {
		return nil, fmt.Errorf("response.body: %w", err)
	}
	var it items
	if err := decodeNumbers(b.Items, &it); err != nil {
		return nil, fmt.Errorf("response.body.items: %w", err)
	}

	switch v := it.Item.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	default:
		return nil, errors.New("response.body.items.item is not a list")
	}
}

// decodeNumbers unmarshals raw into dest keeping numbers as json.Number. Empty
// or null input leaves dest untouched.
func decodeNumbers(raw json.RawMessage, dest any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dest)
}

// stringField returns obj[key] only when it is a JSON string. A numeric fcstDate
// is left empty so the aggregator skips the sample.
func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
