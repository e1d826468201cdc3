package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pevans/shelfwatch/product"
	"github.com/pevans/shelfwatch/tracking"
)

// printItemsTable prints tracked items in human-readable table format
func printItemsTable(items []tracking.Item) {
	if len(items) == 0 {
		fmt.Println("No items are tracked.")
		return
	}

	fmt.Printf("%-10s  %-10s  %-7s  %-16s  %s\n", "ID", "PRICE", "SAMPLES", "TRACKED", "TITLE")
	fmt.Println("----------------------------------------------------------------------------------------------------")

	for _, item := range items {
		fmt.Printf("%-10s  %-10s  %-7d  %-16s  %s\n",
			item.Identifier,
			formatPrice(item.CurrentPrice()),
			len(item.PriceHistory),
			item.TrackedAt.Local().Format("2006-01-02 15:04"),
			truncate(item.Snapshot.DisplayTitle(), 50),
		)
	}
}

// printItemsJSON prints tracked items in JSON format
func printItemsJSON(items []tracking.Item) {
	output := map[string]any{
		"items": items,
		"total": len(items),
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(data))
}

// printItemsCompact prints one line per tracked item
func printItemsCompact(items []tracking.Item) {
	for _, item := range items {
		fmt.Printf("%s %s %s\n", item.Identifier, formatPrice(item.CurrentPrice()), item.Snapshot.DisplayTitle())
	}
}

// printHistory prints an item's price history, oldest first
func printHistory(item *tracking.Item) {
	fmt.Printf("%s\n", item.Snapshot.DisplayTitle())
	fmt.Printf("   ID: %s | Tracked: %s\n", item.Identifier, item.TrackedAt.Local().Format("2006-01-02 15:04"))
	if item.Snapshot.ProductURL != nil {
		fmt.Printf("   URL: %s\n", *item.Snapshot.ProductURL)
	}
	fmt.Println()

	for i, point := range item.PriceHistory {
		marker := " "
		if i > 0 && point.Price != nil && item.PriceHistory[i-1].Price != nil {
			switch point.Price.Cmp(*item.PriceHistory[i-1].Price) {
			case -1:
				marker = "↓"
			case 1:
				marker = "↑"
			}
		}
		fmt.Printf(" %s %s  %s\n", marker, point.Timestamp.Local().Format("2006-01-02 15:04"), formatPrice(point.Price))
	}
}

// printRecordsTable prints extracted records
func printRecordsTable(records []product.Record) {
	if len(records) == 0 {
		fmt.Println("No products found.")
		return
	}

	for _, rec := range records {
		id := rec.ID()
		if id == "" {
			id = "-"
		}
		rating := "-"
		if rec.Rating != nil {
			rating = fmt.Sprintf("%.1f", *rec.Rating)
		}
		fmt.Printf("%-10s  %-10s  %-4s  %s\n", id, formatPrice(rec.Price), rating, truncate(rec.DisplayTitle(), 60))
	}
}

// printSellers prints the unique sellers of a set of records
func printSellers(sellers []product.SellerInfo) {
	if len(sellers) == 0 {
		fmt.Println("No sellers found.")
		return
	}

	for _, s := range sellers {
		name := "-"
		if s.Name != nil {
			name = *s.Name
		}
		fmt.Printf("%s\n", name)
		if s.Rating != nil {
			fmt.Printf("   Rating: %.1f\n", *s.Rating)
		}
		if s.FeedbackCount != nil {
			fmt.Printf("   Feedback: %d\n", *s.FeedbackCount)
		}
		if s.ProfileURL != nil {
			fmt.Printf("   Profile: %s\n", *s.ProfileURL)
		}
		for _, link := range s.SocialLinks {
			fmt.Printf("   %s: %s\n", link.Platform, link.URL)
		}
	}
}
