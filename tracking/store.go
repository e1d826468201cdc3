package tracking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pevans/shelfwatch/normalize"
	"github.com/pevans/shelfwatch/product"
	"github.com/shopspring/decimal"
)

// Custom errors for tracking operations
var (
	ErrNotTracked        = errors.New("item not tracked")
	ErrUnsupportedDriver = errors.New("storage type must be sqlite3 or postgres")
)

// InvalidRecordError is returned when a record cannot enter the store.
type InvalidRecordError struct {
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return "invalid record: " + e.Reason
}

// PricePoint is one entry of an item's price history. A nil Price records
// that the price was unknown when the item was first tracked.
type PricePoint struct {
	Price     *decimal.Decimal `json:"price"`
	Timestamp time.Time        `json:"timestamp"`
}

// Item is a tracked item: its latest snapshot plus an append-only price
// history, oldest first.
type Item struct {
	Identifier   string         `json:"identifier"`
	Snapshot     product.Record `json:"snapshot"`
	TrackedAt    time.Time      `json:"tracked_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	PriceHistory []PricePoint   `json:"price_history"`
}

// CurrentPrice returns the snapshot price.
func (i *Item) CurrentPrice() *decimal.Decimal {
	return i.Snapshot.Price
}

// Change describes a price change applied by ApplySample.
type Change struct {
	Identifier string
	Title      string
	OldPrice   decimal.Decimal
	NewPrice   decimal.Decimal
	At         time.Time
}

// SQLite runs in WAL mode so reads proceed while a write transaction is
// open. Transactions begin IMMEDIATE: writers queue on the busy timeout
// instead of failing when a read snapshot goes stale.
const (
	sqliteOptions  = "_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	sqliteMaxConns = 4
)

// Store is the durable watch-list. All writes for one identifier are
// serialized and each runs in a single transaction.
type Store struct {
	db     *sql.DB
	driver string
	locks  *keyedMutex
	now    func() time.Time
}

// NewStore opens (creating if needed) a SQLite store at dbPath.
func NewStore(dbPath string) (*Store, error) {
	return Open("sqlite3", dbPath)
}

// Open opens a store for driver ("sqlite3" or "postgres") and dsn.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite", "sqlite3":
		driver = "sqlite3"
		if !strings.Contains(dsn, "?") {
			dsn += "?" + sqliteOptions
		}
	case "postgres", "postgresql":
		driver = "postgres"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite3" {
		if strings.HasPrefix(dsn, ":memory:") {
			// Every connection would get its own database.
			db.SetMaxOpenConns(1)
		} else {
			db.SetMaxOpenConns(sqliteMaxConns)
		}
	}

	store := &Store{
		db:     db,
		driver: driver,
		locks:  newKeyedMutex(),
		now:    time.Now,
	}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the tables if they don't exist.
func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tracked_items (
			identifier TEXT PRIMARY KEY,
			record TEXT NOT NULL,
			tracked_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			identifier TEXT NOT NULL,
			seq INTEGER NOT NULL,
			price TEXT,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (identifier, seq)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the database driver name in use.
func (s *Store) Driver() string {
	return s.driver
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func validateIdentifier(id string) error {
	if id == "" {
		return &InvalidRecordError{Reason: "identifier is absent"}
	}
	if !normalize.IsIdentifier(id) {
		return &InvalidRecordError{Reason: fmt.Sprintf("identifier %q is malformed", id)}
	}
	return nil
}

// Track adds rec to the watch-list with a history seeded from its price.
// Tracking an identifier that is already tracked is a no-op that returns the
// existing item.
func (s *Store) Track(ctx context.Context, rec product.Record) (*Item, error) {
	item, _, err := s.Add(ctx, rec)
	return item, err
}

// Add is Track that also reports whether the item was newly created.
func (s *Store) Add(ctx context.Context, rec product.Record) (*Item, bool, error) {
	id := rec.ID()
	if err := validateIdentifier(id); err != nil {
		return nil, false, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := s.get(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, tx.Commit()
	}

	now := s.now().UTC()
	item := &Item{
		Identifier:   id,
		Snapshot:     rec,
		TrackedAt:    now,
		UpdatedAt:    now,
		PriceHistory: []PricePoint{{Price: rec.Price, Timestamp: now}},
	}

	if err := s.insert(ctx, tx, item); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit: %w", err)
	}

	return item, true, nil
}

// insert writes a new item and its full history.
func (s *Store) insert(ctx context.Context, tx *sql.Tx, item *Item) error {
	data, err := json.Marshal(item.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO tracked_items (identifier, record, tracked_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (identifier) DO NOTHING
	`), item.Identifier, string(data), formatTime(item.TrackedAt), formatTime(item.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	for seq, point := range item.PriceHistory {
		if err := s.appendPoint(ctx, tx, item.Identifier, seq, point); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) appendPoint(ctx context.Context, tx *sql.Tx, id string, seq int, point PricePoint) error {
	_, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO price_history (identifier, seq, price, recorded_at)
		VALUES (?, ?, ?, ?)
	`), id, seq, formatPrice(point.Price), formatTime(point.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}
	return nil
}

// Untrack removes an item and its history, reporting whether it existed.
func (s *Store) Untrack(ctx context.Context, id string) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM price_history WHERE identifier = ?`), id); err != nil {
		return false, fmt.Errorf("failed to delete price history: %w", err)
	}
	result, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM tracked_items WHERE identifier = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return rows > 0, nil
}

// Get returns the item for id, or nil when it is not tracked.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	return s.get(ctx, s.db, id)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) get(ctx context.Context, q queryer, id string) (*Item, error) {
	var record, trackedAt, updatedAt string
	err := q.QueryRowContext(ctx, s.rebind(`
		SELECT record, tracked_at, updated_at
		FROM tracked_items
		WHERE identifier = ?
	`), id).Scan(&record, &trackedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item: %w", err)
	}

	item, err := decodeItem(id, record, trackedAt, updatedAt)
	if err != nil {
		return nil, err
	}

	history, err := s.history(ctx, q, `WHERE identifier = ?`, id)
	if err != nil {
		return nil, err
	}
	item.PriceHistory = history[id]

	return item, nil
}

// ListAll returns every tracked item ordered by tracking time, then
// identifier.
func (s *Store) ListAll(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identifier, record, tracked_at, updated_at FROM tracked_items`)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var id, record, trackedAt, updatedAt string
		if err := rows.Scan(&id, &record, &trackedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item, err := decodeItem(id, record, trackedAt, updatedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	rows.Close()

	history, err := s.history(ctx, s.db, "")
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].PriceHistory = history[items[i].Identifier]
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].TrackedAt.Equal(items[j].TrackedAt) {
			return items[i].TrackedAt.Before(items[j].TrackedAt)
		}
		return items[i].Identifier < items[j].Identifier
	})

	return items, nil
}

// history loads price points grouped by identifier, each oldest first.
func (s *Store) history(ctx context.Context, q queryer, where string, args ...any) (map[string][]PricePoint, error) {
	rows, err := q.QueryContext(ctx, s.rebind(`
		SELECT identifier, price, recorded_at
		FROM price_history `+where+`
		ORDER BY identifier, seq
	`), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	out := map[string][]PricePoint{}
	for rows.Next() {
		var id, recordedAt string
		var price sql.NullString
		if err := rows.Scan(&id, &price, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		point := PricePoint{Timestamp: parseTime(recordedAt)}
		if price.Valid {
			d, err := decimal.NewFromString(price.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse stored price %q: %w", price.String, err)
			}
			point.Price = &d
		}
		out[id] = append(out[id], point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price history: %w", err)
	}

	return out, nil
}

// ApplySample is the compare-then-append step of a sampling cycle. Under the
// identifier's lock and inside one transaction it:
//   - returns ErrNotTracked if the item no longer exists;
//   - appends {price, at} and returns a Change when both the snapshot price
//     and the sampled price are present and differ;
//   - otherwise appends nothing and returns a nil Change.
//
// The snapshot is refreshed with product.Merge, so absent sampled fields
// never erase known values. A sampled price on an item whose price was never
// known becomes the baseline without a history entry or a Change.
func (s *Store) ApplySample(ctx context.Context, id string, rec product.Record, at time.Time) (*Change, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := s.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotTracked
	}

	at = at.UTC()
	oldPrice := item.Snapshot.Price
	newPrice := rec.Price

	snapshot := product.Merge(item.Snapshot, rec)
	snapshot.Identifier = &item.Identifier

	var change *Change
	if oldPrice != nil && newPrice != nil && !product.PriceEqual(oldPrice, newPrice) {
		if err := s.appendPoint(ctx, tx, id, len(item.PriceHistory), PricePoint{Price: newPrice, Timestamp: at}); err != nil {
			return nil, err
		}
		change = &Change{
			Identifier: id,
			Title:      snapshot.DisplayTitle(),
			OldPrice:   *oldPrice,
			NewPrice:   *newPrice,
			At:         at,
		}
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE tracked_items SET record = ?, updated_at = ? WHERE identifier = ?
	`), string(data), formatTime(at), id); err != nil {
		return nil, fmt.Errorf("failed to update snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return change, nil
}

func decodeItem(id, record, trackedAt, updatedAt string) (*Item, error) {
	item := &Item{
		Identifier: id,
		TrackedAt:  parseTime(trackedAt),
		UpdatedAt:  parseTime(updatedAt),
	}
	if err := json.Unmarshal([]byte(record), &item.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record for %s: %w", id, err)
	}
	return item, nil
}

func formatPrice(p *decimal.Decimal) any {
	if p == nil {
		return nil
	}
	return p.String()
}

func formatTime(t time.Time) string {
	// Strip monotonic clock for consistent storage and comparisons
	return t.UTC().Truncate(0).Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	// Try RFC3339Nano first, fall back to RFC3339 for compatibility
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}
