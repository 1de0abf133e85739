package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/mtgban/go-ygoban/ygoban"
	"github.com/mtgban/go-ygoban/ygoprodeck"
)

var GlobalLogCallback ygoban.LogCallbackFunc = log.Printf

var Commit = func() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}
	return ""
}()

type options struct {
	Mode       string
	Weeks      int
	Name       string
	Set        string
	OutputPath string
	Format     string
	Archive    bool
	Load       bool
}

func fetch(ctx context.Context, client *ygoprodeck.Client, opts options, now time.Time) ([]ygoprodeck.Card, error) {
	switch opts.Mode {
	case "new":
		response, err := client.CardsSince(ctx, opts.Weeks, now)
		if err != nil {
			return nil, err
		}
		return response.Data, nil
	case "all":
		response, err := client.AllCards(ctx)
		if err != nil {
			return nil, err
		}
		return response.Data, nil
	case "card":
		card, err := client.CardByNameInSet(ctx, opts.Name, opts.Set)
		if err != nil {
			return nil, err
		}
		return []ygoprodeck.Card{card.InSet(opts.Set)}, nil
	}
	return nil, fmt.Errorf("unknown mode %q", opts.Mode)
}

func export(rows []ygoban.Row, opts options, now time.Time) (string, error) {
	name := ygoban.DefaultCSVName(now)
	name = strings.TrimSuffix(name, ".csv") + "." + opts.Format

	// Plain local exports go straight to disk
	if opts.Format == "csv" && isLocal(opts.OutputPath) {
		path := filepath.Join(opts.OutputPath, name)
		return path, ygoban.ExportCSV(rows, path)
	}

	path := strings.TrimSuffix(opts.OutputPath, "/") + "/" + name
	err := dumpRows(rows, opts.OutputPath, name, opts.Format)
	if err != nil {
		return path, &ygoban.IOError{Path: path, Err: err}
	}
	return path, nil
}

func load(ctx context.Context, path string) error {
	reader, err := loadData(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	cfg := ygoban.NewDBConfigFromEnv()
	err = resolveDBPassword(ctx, &cfg)
	if err != nil {
		return err
	}

	report, err := ygoban.LoadFile(ctx, cfg, reader, GlobalLogCallback)
	if err != nil {
		return err
	}
	log.Println("Loaded", report.Inserted, "new rows into", cfg.Table+",", report.Skipped, "already present")
	return nil
}

// pipeline runs every stage in order, the first failure aborts the run
func pipeline(ctx context.Context, client *ygoprodeck.Client, opts options) error {
	now := time.Now()

	if opts.Archive {
		client.Archiver = archiveTo(opts.OutputPath)
	}

	start := time.Now()
	cards, err := fetch(ctx, client, opts, now)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	log.Println("Fetched", len(cards), "cards in", time.Since(start))

	rows, err := ygoban.Normalize(cards)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	log.Println("Normalized", ygoban.Summarize(rows))

	start = time.Now()
	path, err := export(rows, opts, now)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	log.Println("Exported", path, "in", time.Since(start))

	if !opts.Load {
		return nil
	}

	start = time.Now()
	err = load(ctx, path)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	log.Println("Loading took:", time.Since(start))

	return nil
}

type command struct {
	options

	LoadFile string
	Version  bool
}

func parseCommand(args []string) (*command, error) {
	var cmd command

	fs := flag.NewFlagSet("ygotool", flag.ContinueOnError)
	fs.StringVar(&cmd.Mode, "mode", "new", "Cards to fetch: new (released in the last weeks), all, or card (by name and set)")
	fs.IntVar(&cmd.Weeks, "weeks", ygoprodeck.DefaultNewCardsWeeks, "Number of weeks to look back in new mode")
	fs.StringVar(&cmd.Name, "name", "", "Card name, for card mode")
	fs.StringVar(&cmd.Set, "set", "", "Set name, for card mode")
	fs.StringVar(&cmd.OutputPath, "output-path", ".", "Path where to dump results (local dir, gs:// or b2://)")
	fs.StringVar(&cmd.Format, "format", "csv", "File format of the output file (csv/ndjson), optionally with .xz or .bz2")
	fs.BoolVar(&cmd.Archive, "archive", true, "Archive the raw JSON response next to the output")
	fs.BoolVar(&cmd.Load, "load", false, "Load the exported rows in the database configured via DB_* env vars")
	fs.StringVar(&cmd.LoadFile, "load-file", "", "Load an existing CSV export in the database, without fetching")
	fs.BoolVar(&cmd.Version, "v", false, "Print version information")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if cmd.Version || cmd.LoadFile != "" {
		return &cmd, nil
	}

	kind, _, err := parseFormat(cmd.Format)
	if err != nil {
		return nil, fmt.Errorf("invalid -format option: %w", err)
	}
	if cmd.Load && kind != "csv" {
		return nil, errors.New("loading requires the csv format")
	}

	switch cmd.Mode {
	case "new", "all":
	case "card":
		if cmd.Name == "" || cmd.Set == "" {
			return nil, errors.New("missing -name or -set argument for card mode")
		}
	default:
		return nil, fmt.Errorf("invalid -mode option %q", cmd.Mode)
	}

	return &cmd, nil
}

func run() int {
	start := time.Now()

	cmd, err := parseCommand(os.Args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			log.Println(err)
		}
		return 1
	}
	opts := cmd.options

	log.Println("ygotool version", Commit)
	if cmd.Version {
		return 0
	}

	ctx := context.Background()

	if cmd.LoadFile != "" {
		err := initializeBucket(cmd.LoadFile)
		if err != nil {
			log.Println("cannot initialize buckets:", err)
			return 1
		}
		err = load(ctx, cmd.LoadFile)
		if err != nil {
			log.Println("load:", err)
			return 1
		}
		log.Println("Completed in", time.Since(start))
		return 0
	}

	err = initializeBucket(opts.OutputPath)
	if err != nil {
		log.Println("cannot initialize buckets:", err)
		return 1
	}

	err = pipeline(ctx, ygoprodeck.NewClient(), opts)
	if err != nil {
		var schemaErr *ygoban.SchemaError
		if errors.As(err, &schemaErr) {
			log.Println("Card", schemaErr.CardId, "is malformed, the API schema may have changed")
		}
		log.Println(err)
		return 1
	}

	log.Println("yugi", opts.Format, "file created")
	log.Println("Completed in", time.Since(start))
	return 0
}

func main() {
	os.Exit(run())
}
