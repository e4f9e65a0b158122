// Package postgres persists events and weather days in PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seoulnow/seoulnow-etl/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// eventColumns is the column order used for inserts, updates, and reads.
var eventColumns = []string{
	"id", "codename", "guname", "title", "date", "start_date", "end_date",
	"place", "org_name", "use_trgt", "use_fee", "player", "program", "etc_desc",
	"ticket", "theme_code", "org_link", "main_img", "hmpg_addr", "rgst_date",
	"lot", "lat", "is_free", "created_at", "updated_at",
}

// eventImmutable are kept from the first insert.
var eventImmutable = map[string]bool{"id": true, "created_at": true}

var weatherColumns = []string{"date", "location", "temp", "rain_prob", "pm10"}

// Store is the pgxpool-backed implementation of the pipeline stores.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects and fails fast if the database is unreachable.
func NewStore(ctx context.Context, dbURL string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks connectivity for the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CheckReadiness implements the readiness checker used by /readyz.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// UpsertEvents writes the batch in one transaction with a single multi-row
// INSERT ... ON CONFLICT (id) DO UPDATE. IDs must be unique within the batch.
func (s *Store) UpsertEvents(ctx context.Context, events []domain.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	query := upsertSQL("events", eventColumns, []string{"id"}, eventImmutable, len(events))
	args := make([]any, 0, len(events)*len(eventColumns))
	for i := range events {
		args = append(args, eventArgs(&events[i])...)
	}

	var affected int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert %d events: %w", len(events), err)
	}
	return int(affected), nil
}

// UpsertWeather writes the batch in one transaction keyed on (date, location).
// The surrogate id is never touched by an update.
func (s *Store) UpsertWeather(ctx context.Context, days []domain.WeatherDay) (int, error) {
	if len(days) == 0 {
		return 0, nil
	}

	query := upsertSQL("weather", weatherColumns, []string{"date", "location"}, nil, len(days))
	args := make([]any, 0, len(days)*len(weatherColumns))
	for _, d := range days {
		args = append(args, d.Date.UTC(), d.Location, d.Temp, d.RainProb, d.PM10)
	}

	var affected int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert %d weather days: %w", len(days), err)
	}
	return int(affected), nil
}

// GetEvent returns the event with id, or nil when it does not exist.
func (s *Store) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	query := fmt.Sprintf("SELECT %s FROM events WHERE id = $1", strings.Join(eventColumns, ", "))

	var ev domain.Event
	err := s.pool.QueryRow(ctx, query, id).Scan(eventDest(&ev)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	normalizeTimes(&ev)
	return &ev, nil
}

// WeatherOn returns the weather row for the calendar day of date at location,
// or nil when there is none. It satisfies domain.WeatherLookup.
func (s *Store) WeatherOn(ctx context.Context, date time.Time, location string) (*domain.WeatherDay, error) {
	var w domain.WeatherDay
	err := s.pool.QueryRow(ctx, `
		SELECT date, location, temp, rain_prob, pm10
		FROM weather
		WHERE date = $1::date AND location = $2
	`, date.UTC().Format(time.DateOnly), location).Scan(&w.Date, &w.Location, &w.Temp, &w.RainProb, &w.PM10)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get weather %s %s: %w", date.Format(time.DateOnly), location, err)
	}
	return &w, nil
}

// CountEvents returns the number of stored events.
func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}

// upsertSQL builds a multi-row INSERT that updates every column outside the
// conflict key and the immutable set.
func upsertSQL(table string, columns, conflict []string, immutable map[string]bool, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	n := 1
	for r := range rows {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}

	key := make(map[string]bool, len(conflict))
	for _, c := range conflict {
		key[c] = true
	}
	var sets []string
	for _, c := range columns {
		if key[c] || immutable[c] {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflict, ", "), strings.Join(sets, ", "))
	return b.String()
}

func eventArgs(ev *domain.Event) []any {
	return []any{
		ev.ID, ev.Codename, ev.Guname, ev.Title, ev.Date, ev.StartDate, ev.EndDate,
		ev.Place, ev.OrgName, ev.UseTarget, ev.UseFee, ev.Player, ev.Program, ev.EtcDesc,
		ev.Ticket, ev.ThemeCode, ev.OrgLink, ev.MainImg, ev.HmpgAddr, ev.RegisteredOn,
		ev.Lot, ev.Lat, ev.IsFree, ev.CreatedAt, ev.UpdatedAt,
	}
}

func eventDest(ev *domain.Event) []any {
	return []any{
		&ev.ID, &ev.Codename, &ev.Guname, &ev.Title, &ev.Date, &ev.StartDate, &ev.EndDate,
		&ev.Place, &ev.OrgName, &ev.UseTarget, &ev.UseFee, &ev.Player, &ev.Program, &ev.EtcDesc,
		&ev.Ticket, &ev.ThemeCode, &ev.OrgLink, &ev.MainImg, &ev.HmpgAddr, &ev.RegisteredOn,
		&ev.Lot, &ev.Lat, &ev.IsFree, &ev.CreatedAt, &ev.UpdatedAt,
	}
}

func normalizeTimes(ev *domain.Event) {
	for _, t := range []*time.Time{ev.StartDate, ev.EndDate} {
		if t != nil {
			*t = t.UTC()
		}
	}
	ev.CreatedAt = ev.CreatedAt.UTC()
	ev.UpdatedAt = ev.UpdatedAt.UTC()
}
