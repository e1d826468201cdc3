package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pevans/shelfwatch/docsource"
	"github.com/pevans/shelfwatch/normalize"
	"github.com/shopspring/decimal"
)

// parseDuration extends time.ParseDuration to support 'd' (days) and 'w'
// (weeks)
func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	if strings.HasSuffix(s, "d") {
		var n int
		if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &n); err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	if strings.HasSuffix(s, "w") {
		var n int
		if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &n); err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}

	return 0, fmt.Errorf("invalid duration: %s", s)
}

// parseTarget turns an argument into a document target: a bare identifier,
// or a URL (whose identifier is taken from the path when present).
func parseTarget(arg string) (docsource.Target, error) {
	if normalize.IsIdentifier(arg) {
		return docsource.Target{Identifier: arg}, nil
	}
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		target := docsource.Target{URL: arg}
		if id, ok := normalize.IdentifierFromURL(arg); ok {
			target.Identifier = id
		}
		return target, nil
	}
	return docsource.Target{}, fmt.Errorf("not an identifier or URL: %s", arg)
}

// parseDecimalFlag parses an optional price flag; empty means unset.
func parseDecimalFlag(name, value string) *decimal.Decimal {
	if value == "" {
		return nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid --%s: %v\n", name, err)
		os.Exit(1)
	}
	return &d
}

// formatPrice renders an optional price for tables.
func formatPrice(p *decimal.Decimal) string {
	if p == nil {
		return "-"
	}
	return p.StringFixed(2)
}

// truncate shortens s to width runes with an ellipsis.
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// fail prints an error and exits.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
