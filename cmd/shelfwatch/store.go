package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pevans/shelfwatch/config"
	"github.com/pevans/shelfwatch/export"
	"github.com/pevans/shelfwatch/feedseed"
	"github.com/pevans/shelfwatch/product"
	"github.com/pevans/shelfwatch/tracking"
)

func handleInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing config file")
	fs.Parse(args)

	written, err := config.WriteDefaultConfigFile(*force)
	if err != nil {
		fail("%v", err)
	}
	path, _ := config.ConfigFilePath()
	if written {
		fmt.Printf("✓ Wrote %s\n", path)
	} else {
		fmt.Printf("Config file already exists: %s (use --force to overwrite)\n", path)
	}

	cfg, err := config.Load()
	if err != nil {
		fail("failed to load configuration: %v", err)
	}
	store, err := tracking.Open(cfg.Storage.Type, cfg.Storage.DSN)
	if err != nil {
		fail("failed to open tracking store: %v", err)
	}
	defer store.Close()

	fmt.Printf("✓ Storage ready (%s)\n", store.Driver())
}

func handleExport(a *app, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", "csv", "Output format (csv, json, xlsx, excel)")
	output := fs.String("output", "", "Output file path (default: generated from the format)")
	fs.Parse(args)

	f, err := export.ParseFormat(*format)
	if err != nil {
		fail("%v", err)
	}

	service := a.openService()
	items, err := service.List(context.Background())
	if err != nil {
		fail("failed to list tracked items: %v", err)
	}

	records := make([]product.Record, 0, len(items))
	for _, item := range items {
		records = append(records, item.Snapshot)
	}

	path := *output
	if path == "" {
		path = export.Filename(f, time.Now())
	}
	if err := writeRecords(path, f, records); err != nil {
		fail("%v", err)
	}

	fmt.Printf("✓ Exported %d tracked items to %s\n", len(records), path)
}

func handleDump(a *app, args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	output := fs.String("output", "", "Output file path (default: stdout)")
	fs.Parse(args)

	a.openService()
	dump, err := a.store.Dump(context.Background())
	if err != nil {
		fail("failed to dump tracked items: %v", err)
	}

	var w io.Writer = os.Stdout
	if *output != "" {
		file, err := os.Create(*output)
		if err != nil {
			fail("failed to create %s: %v", *output, err)
		}
		defer file.Close()
		w = file
	}

	if err := tracking.WriteDump(w, dump); err != nil {
		fail("%v", err)
	}
	if *output != "" {
		fmt.Printf("✓ Wrote %d tracked items to %s\n", len(dump), *output)
	}
}

func handleRestore(a *app, args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: dump file is required\n")
		fmt.Fprintf(os.Stderr, "Usage: shelfwatch restore <file|->\n")
		os.Exit(1)
	}

	var r io.Reader = os.Stdin
	if name := fs.Arg(0); name != "-" {
		file, err := os.Open(name)
		if err != nil {
			fail("failed to open %s: %v", name, err)
		}
		defer file.Close()
		r = file
	}

	dump, err := tracking.ReadDump(r)
	if err != nil {
		fail("%v", err)
	}

	a.openService()
	restored, err := a.store.Restore(context.Background(), dump)
	if err != nil {
		fail("restored %d of %d items: %v", restored, len(dump), err)
	}

	fmt.Printf("✓ Restored %d tracked items\n", restored)
}

func handleImportFeed(a *app, args []string) {
	fs := flag.NewFlagSet("import-feed", flag.ExitOnError)
	track := fs.Bool("track", false, "Track every item found in the feed")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: feed URL or file is required\n")
		fmt.Fprintf(os.Stderr, "Usage: shelfwatch import-feed [--track] <url|file>\n")
		os.Exit(1)
	}

	ctx := context.Background()
	source := fs.Arg(0)

	var candidates []feedseed.Candidate
	var err error
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.Watch.FetchTimeout)
		candidates, err = feedseed.Fetch(fetchCtx, source)
		cancel()
	} else {
		var file *os.File
		file, err = os.Open(source)
		if err != nil {
			fail("failed to open %s: %v", source, err)
		}
		candidates, err = feedseed.Parse(file)
		file.Close()
	}
	if err != nil {
		fail("%v", err)
	}

	if len(candidates) == 0 {
		fmt.Println("No trackable items found in feed.")
		return
	}

	if !*track {
		for _, c := range candidates {
			fmt.Printf("%-10s  %s\n", c.Identifier, truncate(c.Title, 70))
		}
		fmt.Printf("\nFound %d items (use --track to track them)\n", len(candidates))
		return
	}

	service := a.openService()
	tracked := 0
	for _, c := range candidates {
		if _, err := service.Track(ctx, c.Record(time.Now())); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to track %s: %v\n", c.Identifier, err)
			continue
		}
		tracked++
	}

	fmt.Printf("✓ Tracking %d of %d items from feed\n", tracked, len(candidates))
}
