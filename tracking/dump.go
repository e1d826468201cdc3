package tracking

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pevans/shelfwatch/product"
	"github.com/shopspring/decimal"
)

// DumpEntry is one tracked item in portable form: the record fields inline,
// followed by trackedAt and priceHistory.
type DumpEntry struct {
	product.Record
	TrackedAt    time.Time    `json:"trackedAt"`
	PriceHistory []PricePoint `json:"priceHistory"`
}

// Dump maps identifiers to their tracked state.
type Dump map[string]DumpEntry

// Dump returns the whole watch-list.
func (s *Store) Dump(ctx context.Context) (Dump, error) {
	items, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make(Dump, len(items))
	for _, item := range items {
		out[item.Identifier] = DumpEntry{
			Record:       item.Snapshot,
			TrackedAt:    item.TrackedAt,
			PriceHistory: item.PriceHistory,
		}
	}
	return out, nil
}

// Restore loads dump into the store and reports how many items it created
// or extended. Stored history is never rewritten:
//   - an identifier not yet tracked is inserted with the dumped history;
//   - for a tracked identifier, only dumped prices recorded after its last
//     stored point are appended, skipping any equal to the current price.
//
// Dumped histories must be chronological, with an absent price only as the
// first point. The snapshot price is taken from the last known history
// price. Each item is written in its own transaction; on error, items
// restored before it stay restored.
func (s *Store) Restore(ctx context.Context, dump Dump) (int, error) {
	ids := make([]string, 0, len(dump))
	for id := range dump {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	restored := 0
	for _, id := range ids {
		written, err := s.restoreOne(ctx, id, dump[id])
		if err != nil {
			return restored, fmt.Errorf("failed to restore %s: %w", id, err)
		}
		if written {
			restored++
		}
	}
	return restored, nil
}

func (s *Store) restoreOne(ctx context.Context, id string, entry DumpEntry) (bool, error) {
	if err := validateIdentifier(id); err != nil {
		return false, err
	}
	if err := validateHistory(entry.PriceHistory); err != nil {
		return false, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := s.get(ctx, tx, id)
	if err != nil {
		return false, err
	}

	var written bool
	if existing == nil {
		written, err = true, s.insert(ctx, tx, s.restoredItem(id, entry))
	} else {
		written, err = s.extend(ctx, tx, existing, entry)
	}
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return written, nil
}

// restoredItem builds a new item from a dump entry.
func (s *Store) restoredItem(id string, entry DumpEntry) *Item {
	item := &Item{
		Identifier: id,
		Snapshot:   entry.Record,
		TrackedAt:  entry.TrackedAt.UTC(),
	}
	item.Snapshot.Identifier = &item.Identifier
	if item.TrackedAt.IsZero() {
		item.TrackedAt = s.now().UTC()
	}

	for _, p := range entry.PriceHistory {
		item.PriceHistory = append(item.PriceHistory, PricePoint{Price: p.Price, Timestamp: p.Timestamp.UTC()})
	}
	if len(item.PriceHistory) == 0 {
		item.PriceHistory = []PricePoint{{Price: item.Snapshot.Price, Timestamp: item.TrackedAt}}
	}
	if last := lastKnownPrice(item.PriceHistory); last != nil {
		item.Snapshot.Price = last
	}

	item.UpdatedAt = item.PriceHistory[len(item.PriceHistory)-1].Timestamp
	if item.UpdatedAt.Before(item.TrackedAt) {
		item.UpdatedAt = item.TrackedAt
	}
	return item
}

// extend appends the dumped prices newer than item's last stored point and
// refreshes the snapshot when any were appended.
func (s *Store) extend(ctx context.Context, tx *sql.Tx, item *Item, entry DumpEntry) (bool, error) {
	var after time.Time
	if n := len(item.PriceHistory); n > 0 {
		after = item.PriceHistory[n-1].Timestamp
	}

	current := item.Snapshot.Price
	seq := len(item.PriceHistory)
	var last time.Time
	for _, p := range entry.PriceHistory {
		if p.Price == nil || !p.Timestamp.After(after) {
			continue
		}
		if current != nil && product.PriceEqual(current, p.Price) {
			continue
		}
		point := PricePoint{Price: p.Price, Timestamp: p.Timestamp.UTC()}
		if err := s.appendPoint(ctx, tx, item.Identifier, seq, point); err != nil {
			return false, err
		}
		seq++
		current = p.Price
		last = point.Timestamp
	}
	if last.IsZero() {
		return false, nil
	}

	snapshot := product.Merge(item.Snapshot, entry.Record)
	snapshot.Identifier = &item.Identifier
	snapshot.Price = current

	data, err := json.Marshal(snapshot)
	if err != nil {
		return false, fmt.Errorf("failed to marshal record: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE tracked_items SET record = ?, updated_at = ? WHERE identifier = ?
	`), string(data), formatTime(last), item.Identifier); err != nil {
		return false, fmt.Errorf("failed to update snapshot: %w", err)
	}
	return true, nil
}

// validateHistory checks a dumped history could have been recorded by
// ApplySample: oldest first, an absent price only as the seed, and no
// consecutive repeats of a known price.
func validateHistory(history []PricePoint) error {
	var prev *decimal.Decimal
	for i, p := range history {
		if i > 0 && p.Timestamp.Before(history[i-1].Timestamp) {
			return &InvalidRecordError{Reason: fmt.Sprintf("price history is not chronological at entry %d", i)}
		}
		if p.Price == nil {
			if i > 0 {
				return &InvalidRecordError{Reason: fmt.Sprintf("price history entry %d has no price", i)}
			}
			continue
		}
		if prev != nil && product.PriceEqual(prev, p.Price) {
			return &InvalidRecordError{Reason: fmt.Sprintf("price history entry %d repeats the previous price", i)}
		}
		prev = p.Price
	}
	return nil
}

func lastKnownPrice(history []PricePoint) *decimal.Decimal {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Price != nil {
			return history[i].Price
		}
	}
	return nil
}

// WriteDump encodes dump as indented JSON.
func WriteDump(w io.Writer, dump Dump) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		return fmt.Errorf("failed to encode dump: %w", err)
	}
	return nil
}

// ReadDump decodes a dump written by WriteDump.
func ReadDump(r io.Reader) (Dump, error) {
	var dump Dump
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return nil, fmt.Errorf("failed to decode dump: %w", err)
	}
	return dump, nil
}
