package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	args := os.Args[2:]

	switch subcommand {
	case "help", "--help", "-h":
		printUsage()
		return
	case "init":
		handleInit(args)
		return
	}

	a := loadApp()
	defer a.close()

	switch subcommand {
	case "extract":
		handleExtract(a, args)
	case "track":
		handleTrack(a, args)
	case "untrack":
		handleUntrack(a, args)
	case "list":
		handleList(a, args)
	case "history":
		handleHistory(a, args)
	case "check":
		handleCheck(a, args)
	case "export":
		handleExport(a, args)
	case "dump":
		handleDump(a, args)
	case "restore":
		handleRestore(a, args)
	case "import-feed":
		handleImportFeed(a, args)
	case "watch":
		handleWatch(a, args)
	case "serve":
		handleServe(a, args)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		a.close()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("shelfwatch - Product listing extractor and price tracker")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  shelfwatch <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  extract       Extract product records from a page and export them")
	fmt.Println("  track         Start tracking an item by identifier or URL")
	fmt.Println("  untrack       Stop tracking an item")
	fmt.Println("  list          List tracked items")
	fmt.Println("  history       Show the price history of a tracked item")
	fmt.Println("  check         Sample tracked items now")
	fmt.Println("  export        Export tracked item snapshots (csv, json, xlsx, excel)")
	fmt.Println("  dump          Write the whole watch-list as JSON")
	fmt.Println("  restore       Load a watch-list written by dump")
	fmt.Println("  import-feed   Find trackable items in an RSS or Atom feed")
	fmt.Println("  watch         Run the sampling scheduler")
	fmt.Println("  serve         Run the scheduler and the HTTP API")
	fmt.Println("  init          Write the default config file and create storage")
	fmt.Println("  help          Show this help message")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  ~/.shelfwatch/config.yaml, overridden by SHELFWATCH_* environment")
	fmt.Println("  variables (a .env file in the working directory is read first).")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  SHELFWATCH_STORAGE_TYPE   sqlite3 or postgres (default: sqlite3)")
	fmt.Println("  SHELFWATCH_STORAGE_DSN    Database path or DSN (default: shelfwatch.db)")
	fmt.Println("  SHELFWATCH_WATCH_PERIOD   Sampling period, 5m to 168h (default: 24h)")
	fmt.Println("  SHELFWATCH_PAGES_DIR      Read saved <identifier>.html pages instead of fetching")
	fmt.Println("  SHELFWATCH_LOG_LEVEL      Log level (default: info)")
}
