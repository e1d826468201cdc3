package notify

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/shelfwatch/watch"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ watch.Notifier = (*LogNotifier)(nil)
	_ watch.Notifier = (*FileNotifier)(nil)
	_ watch.Notifier = Multi(nil)
)

func createTestEvent() watch.ChangeEvent {
	return watch.ChangeEvent{
		ID:         uuid.New(),
		Identifier: "B0000000A1",
		Title:      "Kettle",
		OldPrice:   decimal.RequireFromString("29.99"),
		NewPrice:   decimal.RequireFromString("24.99"),
		At:         time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
	}
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Notify(context.Context, watch.ChangeEvent) error {
	f.calls++
	return errors.New("unreachable")
}

// TestLogNotifier verifies events are logged with their fields
func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	err := NewLogNotifier(logger).Notify(context.Background(), createTestEvent())

	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"identifier":"B0000000A1"`)
	assert.Contains(t, buf.String(), "Price dropped for Kettle")
	assert.Contains(t, buf.String(), `"new_price":"24.99"`)
}

// TestFileNotifier_AppendsLines verifies events round-trip through the file
func TestFileNotifier_AppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "changes.jsonl")
	n, err := NewFileNotifier(path)
	require.NoError(t, err)

	first := createTestEvent()
	second := createTestEvent()
	second.NewPrice = decimal.RequireFromString("31.5")

	require.NoError(t, n.Notify(context.Background(), first))
	require.NoError(t, n.Notify(context.Background(), second))

	events, err := ReadEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, "24.99", events[0].NewPrice.String())
	assert.Equal(t, "31.5", events[1].NewPrice.String())
	assert.Equal(t, first.At, events[0].At)
}

// TestMulti_TriesEveryNotifier verifies one failure does not stop delivery
func TestMulti_TriesEveryNotifier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changes.jsonl")
	file, err := NewFileNotifier(path)
	require.NoError(t, err)
	failing := &failingNotifier{}

	err = Multi{failing, file}.Notify(context.Background(), createTestEvent())

	assert.Error(t, err)
	assert.Equal(t, 1, failing.calls)
	events, err := ReadEvents(path)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

// TestMulti_Empty verifies an empty set succeeds
func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, Multi{}.Notify(context.Background(), createTestEvent()))
}
