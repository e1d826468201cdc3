package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pevans/shelfwatch/tracking"
)

func handleTrack(a *app, args []string) {
	fs := flag.NewFlagSet("track", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: identifier or URL is required\n")
		fmt.Fprintf(os.Stderr, "Usage: shelfwatch track <identifier|url>...\n")
		os.Exit(1)
	}

	service := a.openService()
	ctx := context.Background()

	failed := 0
	for _, arg := range fs.Args() {
		target, err := parseTarget(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed++
			continue
		}

		item, created, err := service.TrackTarget(ctx, target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to track %s: %v\n", arg, err)
			failed++
			continue
		}

		if created {
			fmt.Printf("✓ Tracking %s\n", item.Identifier)
		} else {
			fmt.Printf("Already tracking %s\n", item.Identifier)
		}
		fmt.Printf("  Title: %s\n", item.Snapshot.DisplayTitle())
		fmt.Printf("  Price: %s\n", formatPrice(item.CurrentPrice()))
		fmt.Printf("  Since: %s\n", item.TrackedAt.Local().Format("2006-01-02 15:04"))
	}

	if failed > 0 {
		a.close()
		os.Exit(1)
	}
}

func handleUntrack(a *app, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: identifier is required\n")
		fmt.Fprintf(os.Stderr, "Usage: shelfwatch untrack <identifier>\n")
		os.Exit(1)
	}

	service := a.openService()
	removed, err := service.Untrack(context.Background(), args[0])
	if err != nil {
		fail("failed to untrack %s: %v", args[0], err)
	}
	if !removed {
		fail("%s is not tracked", args[0])
	}

	fmt.Printf("✓ Stopped tracking %s\n", args[0])
}

func handleList(a *app, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	format := fs.String("format", "table", "Output format (table, json, compact)")
	fs.Parse(args)

	service := a.openService()
	items, err := service.List(context.Background())
	if err != nil {
		fail("failed to list tracked items: %v", err)
	}

	switch *format {
	case "table":
		printItemsTable(items)
	case "json":
		printItemsJSON(items)
	case "compact":
		printItemsCompact(items)
	default:
		fail("invalid format: %s (must be table, json, or compact)", *format)
	}
}

func handleHistory(a *app, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: identifier is required\n")
		fmt.Fprintf(os.Stderr, "Usage: shelfwatch history <identifier>\n")
		os.Exit(1)
	}

	service := a.openService()
	item, err := service.Get(context.Background(), args[0])
	if err != nil {
		fail("failed to load %s: %v", args[0], err)
	}
	if item == nil {
		fail("%s is not tracked", args[0])
	}

	printHistory(item)
}

func handleCheck(a *app, args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	fs.Parse(args)

	service := a.openService()
	ctx := context.Background()

	ids := fs.Args()
	if len(ids) == 0 {
		items, err := service.List(ctx)
		if err != nil {
			fail("failed to list tracked items: %v", err)
		}
		for _, item := range items {
			ids = append(ids, item.Identifier)
		}
	}
	if len(ids) == 0 {
		fmt.Println("No items are tracked.")
		return
	}

	changed := 0
	for _, id := range ids {
		start := time.Now()
		event, err := service.Scheduler().SampleNow(ctx, id)
		switch {
		case errors.Is(err, tracking.ErrNotTracked):
			fmt.Printf("  %s: not tracked\n", id)
		case err != nil:
			fmt.Printf("  %s: skipped (%v)\n", id, err)
		case event != nil:
			changed++
			fmt.Printf("  %s: %s → %s (%s%%)\n", id,
				event.OldPrice.StringFixed(2), event.NewPrice.StringFixed(2), event.PercentChange().String())
		default:
			fmt.Printf("  %s: unchanged (%s)\n", id, time.Since(start).Round(time.Millisecond))
		}
	}

	fmt.Printf("\nChecked %d items, %d changed\n", len(ids), changed)
}
