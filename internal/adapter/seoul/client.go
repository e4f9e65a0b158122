// Package seoul fetches the culturalEventInfo dataset from the Seoul Open Data API.
package seoul

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/seoulnow/seoulnow-etl/internal/domain"
)

const (
	// PageSize is the largest row range the API serves per request.
	PageSize = 1000
	dataset  = "culturalEventInfo"
)

// JSONGetter is the transport the client pages through; *feed.Client satisfies it.
type JSONGetter interface {
	GetJSON(ctx context.Context, op, rawURL string, query url.Values, dest any) error
}

// Client pages through the cultural events catalogue.
type Client struct {
	getter JSONGetter
	base   string
	key    string
	logger *slog.Logger
}

// NewClient creates a client for the given API base and key.
func NewClient(getter JSONGetter, base, key string, logger *slog.Logger) *Client {
	return &Client{
		getter: getter,
		base:   strings.TrimRight(base, "/"),
		key:    key,
		logger: logger,
	}
}

// FetchEvents requests consecutive 1-based row ranges of PageSize until a page
// yields no object rows, and returns every object row in page order. Non-object
// rows are dropped. Any failure discards the pages already read.
func (c *Client) FetchEvents(ctx context.Context) ([]domain.RawRecord, error) {
	var all []domain.RawRecord

	for start := 1; ; start += PageSize {
		end := start + PageSize - 1
		rows, err := c.fetchPage(ctx, start, end)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			c.logger.Debug("seoul events paging complete", "pages", (start-1)/PageSize, "records", len(all))
			return all, nil
		}
		all = append(all, rows...)
	}
}

func (c *Client) pageURL(start, end int) string {
	return fmt.Sprintf("%s/%s/json/%s/%d/%d", c.base, url.PathEscape(c.key), dataset, start, end)
}

func (c *Client) fetchPage(ctx context.Context, start, end int) ([]domain.RawRecord, error) {
	op := fmt.Sprintf("fetch page %d-%d", start, end)

	var payload map[string]any
	if err := c.getter.GetJSON(ctx, op, c.pageURL(start, end), nil, &payload); err != nil {
		return nil, err
	}

	// A missing dataset envelope is how the API reports a range past the end.
	raw, ok := payload[dataset]
	if !ok || raw == nil {
		return nil, nil
	}
	envelope, ok := raw.(map[string]any)
	if !ok {
		return nil, domain.NewShapeError(domain.FeedEvents, op, errors.New("culturalEventInfo is not an object"))
	}

	rawRows, ok := envelope["row"]
	if !ok {
		return nil, nil
	}
	list, ok := rawRows.([]any)
	if !ok {
		return nil, domain.NewShapeError(domain.FeedEvents, op, errors.New("culturalEventInfo.row is not a list"))
	}

	rows := make([]domain.RawRecord, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			rows = append(rows, domain.RawRecord(obj))
		}
	}
	return rows, nil
}
