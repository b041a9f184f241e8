// Command mealcore-export loads one diary day from the configured storage
// backend and archives a JSON snapshot of it into the configured blob store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"mealcore/internal/blob"
	"mealcore/internal/core"
	"mealcore/internal/export"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mealcore-export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	day := fs.String("day", time.Now().UTC().Format("2006-01-02"), "day to export (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if _, err := time.Parse("2006-01-02", *day); err != nil {
		fmt.Fprintf(stderr, "invalid -day %q: %v\n", *day, err)
		return 2
	}

	logger := slog.New(slog.NewJSONHandler(stderr, nil))
	ctx := context.Background()

	store, err := core.OpenDiaryStore()
	if err != nil {
		logger.Error("open diary store", "error", err)
		return 1
	}
	blobStore, err := blob.Open(ctx)
	if err != nil {
		logger.Error("open blob store", "error", err)
		return 1
	}

	svc := core.NewService(store,
		core.WithLogger(core.NewSlogLogger(logger)),
		core.WithExporter(export.New(blobStore)),
	)
	if _, err := svc.LoadDay(ctx, *day); err != nil {
		logger.Error("load day", "day", *day, "error", err)
		return 1
	}
	key, err := svc.ExportDay(ctx)
	if err != nil {
		logger.Error("export day", "day", *day, "error", err)
		return 1
	}
	fmt.Fprintln(stdout, key)
	return 0
}
