// Package notify delivers price change events.
package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pevans/shelfwatch/watch"
	"github.com/sirupsen/logrus"
)

// LogNotifier writes each event as a structured log entry.
type LogNotifier struct {
	log logrus.FieldLogger
}

// NewLogNotifier creates a notifier logging to log, or to the standard
// logger when log is nil.
func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, event watch.ChangeEvent) error {
	direction := "increased"
	if event.Dropped() {
		direction = "dropped"
	}

	n.log.WithFields(logrus.Fields{
		"event_id":   event.ID.String(),
		"identifier": event.Identifier,
		"old_price":  event.OldPrice.String(),
		"new_price":  event.NewPrice.String(),
		"percent":    event.PercentChange().String(),
	}).Infof("Price %s for %s", direction, event.Title)
	return nil
}

// FileNotifier appends each event to a file as one JSON object per line.
type FileNotifier struct {
	mu   sync.Mutex
	path string
}

// NewFileNotifier creates a notifier appending to path. The parent directory
// is created if needed.
func NewFileNotifier(path string) (*FileNotifier, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create notification directory: %w", err)
	}
	return &FileNotifier{path: path}, nil
}

func (n *FileNotifier) Notify(_ context.Context, event watch.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	f, err := os.OpenFile(n.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open notification file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// ReadEvents reads back every event written to path by a FileNotifier.
func ReadEvents(path string) ([]watch.ChangeEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open notification file: %w", err)
	}
	defer f.Close()

	var events []watch.ChangeEvent
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var event watch.ChangeEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return nil, fmt.Errorf("line %d: failed to unmarshal event: %w", line, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notification file: %w", err)
	}
	return events, nil
}

// Multi delivers each event to every notifier in order. All notifiers are
// tried; their errors are joined.
type Multi []watch.Notifier

func (m Multi) Notify(ctx context.Context, event watch.ChangeEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
