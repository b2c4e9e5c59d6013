// Package sqlite persists owner documents in relational tables. Snapshot
// subscriptions are served by an in-process fan-out, which is enough for the
// single-process deployments this backend targets.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/store"
)

// Config holds sqlite backend configuration.
type Config struct {
	// Path is the database file. Parent directories are created on open.
	Path string
	// Clock stamps createdAt/updatedAt. Defaults to time.Now.
	Clock func() time.Time
}

// Store implements store.Store on a sqlite database.
type Store struct {
	db           *sql.DB
	transactions *docTable
	categories   *docTable
	profiles     *profileTable
}

func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(cfg.Path); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Store{
		db: db,
		transactions: &docTable{
			db:    db,
			clock: clock,
			spec: tableSpec{
				name:        "transactions",
				orderColumn: "occurred_at",
				fields: []fieldSpec{
					{key: "amount", column: "amount", kind: kindReal},
					{key: "category", column: "category", kind: kindText},
					{key: "description", column: "description", kind: kindText},
					{key: "type", column: "type", kind: kindText},
					{key: "occurredAt", column: "occurred_at", kind: kindTime},
				},
			},
		},
		categories: &docTable{
			db:    db,
			clock: clock,
			spec: tableSpec{
				name:        "categories",
				orderColumn: "created_at",
				fields: []fieldSpec{
					{key: "name", column: "name", kind: kindText},
					{key: "type", column: "type", kind: kindText},
					{key: "color", column: "color", kind: kindText},
				},
			},
		},
		profiles: &profileTable{db: db, clock: clock},
	}, nil
}

func (s *Store) Transactions() store.DocumentStore { return s.transactions }
func (s *Store) Categories() store.DocumentStore   { return s.categories }
func (s *Store) Profiles() store.ProfileStore      { return s.profiles }

func (s *Store) Close(context.Context) error { return s.db.Close() }

type fieldKind int

const (
	kindText fieldKind = iota
	kindReal
	kindTime
)

type fieldSpec struct {
	key    string
	column string
	kind   fieldKind
}

type tableSpec struct {
	name        string
	orderColumn string
	fields      []fieldSpec
}

func (ts tableSpec) columns() []string {
	cols := []string{"id", "owner_id", "created_at", "updated_at"}
	for _, f := range ts.fields {
		cols = append(cols, f.column)
	}
	return cols
}

type subscription struct {
	ownerID  string
	ordered  bool
	deliver  store.SnapshotFunc
	fail     store.ErrorFunc
	canceled bool
}

type docTable struct {
	db    *sql.DB
	clock func() time.Time
	spec  tableSpec

	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription
}

func (t *docTable) Add(ctx context.Context, ownerID string, record core.RawRecord) (string, error) {
	id := uuid.NewString()
	now := t.clock().UTC()

	cols := t.spec.columns()
	args := []any{id, ownerID, now, now}
	for _, f := range t.spec.fields {
		args = append(args, columnValue(f, record))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.spec.name, strings.Join(cols, ", "), placeholders(len(cols)))
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert into %s: %w", t.spec.name, err)
	}

	t.fanOut(ctx, ownerID)
	return id, nil
}

func (t *docTable) Update(ctx context.Context, id string, changes core.RawRecord) error {
	existing, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	for k, v := range changes {
		existing[k] = v
	}

	ownerID, _ := existing["ownerId"].(string)
	now := t.clock().UTC()

	sets := []string{"updated_at = ?"}
	args := []any{now}
	for _, f := range t.spec.fields {
		sets = append(sets, f.column+" = ?")
		args = append(args, columnValue(f, existing))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.spec.name, strings.Join(sets, ", "))
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update %s: %w", t.spec.name, err)
	}

	t.fanOut(ctx, ownerID)
	return nil
}

func (t *docTable) Delete(ctx context.Context, id string) error {
	var ownerID string
	row := t.db.QueryRowContext(ctx, fmt.Sprintf("SELECT owner_id FROM %s WHERE id = ?", t.spec.name), id)
	if err := row.Scan(&ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("look up %s: %w", t.spec.name, err)
	}

	if _, err := t.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.spec.name), id); err != nil {
		return fmt.Errorf("delete from %s: %w", t.spec.name, err)
	}

	t.fanOut(ctx, ownerID)
	return nil
}

func (t *docTable) Get(ctx context.Context, id string) (core.RawRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?",
		strings.Join(t.spec.columns(), ", "), t.spec.name)
	record, err := t.scanRecord(t.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get from %s: %w", t.spec.name, err)
	}
	return record, nil
}

func (t *docTable) List(ctx context.Context, ownerID string) ([]core.RawRecord, error) {
	return t.snapshot(ctx, ownerID, false)
}

func (t *docTable) PurgeOwner(ctx context.Context, ownerID string) error {
	if _, err := t.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE owner_id = ?", t.spec.name), ownerID); err != nil {
		return fmt.Errorf("purge %s: %w", t.spec.name, err)
	}
	t.fanOut(ctx, ownerID)
	return nil
}

func (t *docTable) SubscribeOrdered(ctx context.Context, ownerID string, deliver store.SnapshotFunc, fail store.ErrorFunc) (store.CancelFunc, error) {
	return t.subscribe(ctx, ownerID, true, deliver, fail)
}

func (t *docTable) Subscribe(ctx context.Context, ownerID string, deliver store.SnapshotFunc, fail store.ErrorFunc) (store.CancelFunc, error) {
	return t.subscribe(ctx, ownerID, false, deliver, fail)
}

func (t *docTable) subscribe(ctx context.Context, ownerID string, ordered bool, deliver store.SnapshotFunc, fail store.ErrorFunc) (store.CancelFunc, error) {
	initial, err := t.snapshot(ctx, ownerID, ordered)
	if err != nil {
		return nil, err
	}

	sub := &subscription{ownerID: ownerID, ordered: ordered, deliver: deliver, fail: fail}

	t.mu.Lock()
	if t.subs == nil {
		t.subs = make(map[int]*subscription)
	}
	key := t.nextID
	t.nextID++
	t.subs[key] = sub
	t.mu.Unlock()

	deliver(initial)

	return func() {
		t.mu.Lock()
		sub.canceled = true
		delete(t.subs, key)
		t.mu.Unlock()
	}, nil
}

// fanOut re-queries and redelivers the full set to every subscriber of the
// written owner. Callbacks run outside the lock.
func (t *docTable) fanOut(ctx context.Context, ownerID string) {
	t.mu.Lock()
	targets := make([]*subscription, 0, len(t.subs))
	for _, sub := range t.subs {
		if sub.ownerID == ownerID {
			targets = append(targets, sub)
		}
	}
	t.mu.Unlock()

	for _, sub := range targets {
		records, err := t.snapshot(ctx, ownerID, sub.ordered)

		t.mu.Lock()
		done := sub.canceled
		t.mu.Unlock()
		if done {
			continue
		}

		if err != nil {
			if sub.fail != nil {
				sub.fail(err)
			}
			continue
		}
		sub.deliver(records)
	}
}

func (t *docTable) snapshot(ctx context.Context, ownerID string, ordered bool) ([]core.RawRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE owner_id = ?",
		strings.Join(t.spec.columns(), ", "), t.spec.name)
	if ordered {
		// NULL sorts lowest in sqlite, so undated rows land at the end.
		query += fmt.Sprintf(" ORDER BY %s DESC", t.spec.orderColumn)
	}

	rows, err := t.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.spec.name, err)
	}
	defer rows.Close()

	var records []core.RawRecord
	for rows.Next() {
		record, err := t.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.spec.name, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.spec.name, err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (t *docTable) scanRecord(row rowScanner) (core.RawRecord, error) {
	var (
		id, ownerID        string
		createdAt, updated time.Time
	)
	dest := []any{&id, &ownerID, &createdAt, &updated}

	texts := make([]sql.NullString, len(t.spec.fields))
	reals := make([]sql.NullFloat64, len(t.spec.fields))
	times := make([]sql.NullTime, len(t.spec.fields))
	for i, f := range t.spec.fields {
		switch f.kind {
		case kindReal:
			dest = append(dest, &reals[i])
		case kindTime:
			dest = append(dest, &times[i])
		default:
			dest = append(dest, &texts[i])
		}
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	record := core.RawRecord{
		"id":        id,
		"ownerId":   ownerID,
		"createdAt": createdAt,
		"updatedAt": updated,
	}
	for i, f := range t.spec.fields {
		switch f.kind {
		case kindReal:
			if reals[i].Valid {
				record[f.key] = reals[i].Float64
			}
		case kindTime:
			if times[i].Valid {
				record[f.key] = times[i].Time
			}
		default:
			if texts[i].Valid {
				record[f.key] = texts[i].String
			}
		}
	}
	return record, nil
}

// columnValue coerces a record field to its column representation. Values
// that cannot be coerced store as NULL rather than failing the write.
func columnValue(f fieldSpec, record core.RawRecord) any {
	v, ok := record[f.key]
	if !ok || v == nil {
		return nil
	}
	switch f.kind {
	case kindReal:
		if n, ok := toFloat(v); ok {
			return n
		}
	case kindTime:
		if ts, ok := toTime(v); ok {
			return ts.UTC()
		}
	default:
		if s, ok := v.(string); ok {
			return s
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case time.Time:
		return ts, true
	case *time.Time:
		if ts != nil {
			return *ts, true
		}
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, ts); err == nil {
				return parsed, true
			}
		}
	case int64:
		return time.UnixMilli(ts), true
	case float64:
		return time.UnixMilli(int64(ts)), true
	}
	return time.Time{}, false
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type profileTable struct {
	db    *sql.DB
	clock func() time.Time
}

func (p *profileTable) Get(ctx context.Context, ownerID string) (core.RawRecord, error) {
	var (
		currency           string
		email              bool
		createdAt, updated time.Time
	)
	row := p.db.QueryRowContext(ctx,
		"SELECT currency, email_notifications, created_at, updated_at FROM profiles WHERE owner_id = ?", ownerID)
	if err := row.Scan(&currency, &email, &createdAt, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return core.RawRecord{
		"ownerId":            ownerID,
		"currency":           currency,
		"emailNotifications": email,
		"createdAt":          createdAt,
		"updatedAt":          updated,
	}, nil
}

func (p *profileTable) Upsert(ctx context.Context, ownerID string, changes core.RawRecord) error {
	existing, err := p.Get(ctx, ownerID)
	if err != nil {
		return err
	}
	now := p.clock().UTC()

	if existing == nil {
		currency := string(core.DefaultCurrency)
		email := true
		if s, ok := changes["currency"].(string); ok && s != "" {
			currency = s
		}
		if b, ok := changes["emailNotifications"].(bool); ok {
			email = b
		}
		_, err := p.db.ExecContext(ctx,
			"INSERT INTO profiles (owner_id, currency, email_notifications, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			ownerID, currency, email, now, now)
		if err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		return nil
	}

	currency, _ := existing["currency"].(string)
	email, _ := existing["emailNotifications"].(bool)
	if s, ok := changes["currency"].(string); ok && s != "" {
		currency = s
	}
	if b, ok := changes["emailNotifications"].(bool); ok {
		email = b
	}
	_, err = p.db.ExecContext(ctx,
		"UPDATE profiles SET currency = ?, email_notifications = ?, updated_at = ? WHERE owner_id = ?",
		currency, email, now, ownerID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (p *profileTable) Delete(ctx context.Context, ownerID string) error {
	if _, err := p.db.ExecContext(ctx, "DELETE FROM profiles WHERE owner_id = ?", ownerID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}
