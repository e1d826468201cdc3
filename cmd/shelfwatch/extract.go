package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pevans/shelfwatch/docsource"
	"github.com/pevans/shelfwatch/export"
	"github.com/pevans/shelfwatch/extract"
	"github.com/pevans/shelfwatch/product"
)

func handleExtract(a *app, args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	baseURL := fs.String("url", "", "Page address used to resolve links when reading a local file")
	sortKey := fs.String("sort", "", "Reorder items before extraction (price-low, price-high, rating, reviews, title)")
	minPrice := fs.String("min-price", "", "Hide items below this price")
	maxPrice := fs.String("max-price", "", "Hide items above this price")
	minRating := fs.String("min-rating", "", "Hide items rated below this value")
	format := fs.String("format", "", "Write records to a file (csv, json, xlsx, excel)")
	output := fs.String("output", "", "Output file path (default: generated from the format)")
	sellers := fs.Bool("sellers", false, "Print the unique sellers instead of the records")
	quiet := fs.Bool("quiet", false, "Suppress progress output")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: URL or file is required\n")
		fmt.Fprintf(os.Stderr, "Usage: shelfwatch extract [flags] <url|file>\n")
		os.Exit(1)
	}

	page := loadPage(a, fs.Arg(0), *baseURL)

	if *sortKey != "" {
		if err := a.extractor.SortNodes(page, extract.SortKey(*sortKey)); err != nil {
			fail("%v (must be one of %s)", err, sortKeyList())
		}
	}

	filter := extract.Filter{
		MinPrice: parseDecimalFlag("min-price", *minPrice),
		MaxPrice: parseDecimalFlag("max-price", *maxPrice),
	}
	if *minRating != "" {
		r, err := strconv.ParseFloat(*minRating, 64)
		if err != nil {
			fail("invalid --min-rating: %v", err)
		}
		filter.MinRating = &r
	}
	if filter.MinPrice != nil || filter.MaxPrice != nil || filter.MinRating != nil {
		shown, hidden := a.extractor.FilterNodes(page, filter)
		if !*quiet {
			fmt.Fprintf(os.Stderr, "Filter: %d shown, %d hidden\n", shown, hidden)
		}
	}

	var progress func(float64)
	if !*quiet {
		progress = func(p float64) {
			fmt.Fprintf(os.Stderr, "\rExtracting... %3.0f%%", p*100)
		}
	}
	records := a.extractor.ExtractBatch(page, progress)
	if !*quiet && len(records) > 0 {
		fmt.Fprintln(os.Stderr)
	}

	if *sellers {
		printSellers(extract.Sellers(records))
		return
	}

	if *format == "" {
		printRecordsTable(records)
		return
	}

	f, err := export.ParseFormat(*format)
	if err != nil {
		fail("%v", err)
	}
	path := *output
	if path == "" {
		path = export.Filename(f, time.Now())
	}
	if err := writeRecords(path, f, records); err != nil {
		fail("%v", err)
	}

	fmt.Printf("✓ Exported %d records to %s\n", len(records), path)
}

// loadPage fetches a URL through the configured provider, or parses a local
// file with base as its address.
func loadPage(a *app, source, base string) *extract.Page {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		page, err := a.provider.Fetch(context.Background(), docsource.Target{URL: source})
		if err != nil {
			fail("%v", err)
		}
		return page
	}

	file, err := os.Open(source)
	if err != nil {
		fail("failed to open %s: %v", source, err)
	}
	defer file.Close()

	page, err := extract.ParsePage(base, file)
	if err != nil {
		fail("failed to parse %s: %v", source, err)
	}
	return page
}

func writeRecords(path string, f export.Format, records []product.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.Write(file, f, records); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

func sortKeyList() string {
	keys := make([]string, 0, len(extract.SortKeys()))
	for _, k := range extract.SortKeys() {
		keys = append(keys, string(k))
	}
	return strings.Join(keys, ", ")
}
