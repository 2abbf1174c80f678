// Package engine provides a public API for analyzing performance review
// workbooks programmatically. This package allows third-party applications to
// integrate perfmap's analytics directly into their codebase.
//
// The main functionality includes:
//   - Analyzing every sheet of an Excel or CSV file
//   - Configuring the catalog and concurrency through functional parameters
//   - Monitoring analysis progress through event listeners
//
// Example usage:
//
//	// Analyze a file with the built-in catalog
//	results, err := AnalyzeFile("reviews.xlsx")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for sheet, result := range results {
//		fmt.Printf("%s: %.2f\n", sheet, result.AvgRating)
//	}
//
//	// Analyze with progress monitoring
//	listener := &MyProgressListener{}
//	results, err = AnalyzeFile("reviews.xlsx", WithProgressListener(listener))
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/perfmap/perfmap/internal/analysis"
	"github.com/perfmap/perfmap/internal/catalog"
	"github.com/perfmap/perfmap/internal/engine"
	"github.com/perfmap/perfmap/pkg/events"
)

type config struct {
	catalog     *catalog.Catalog
	listener    events.Listener
	concurrency int
	ctx         context.Context
}

// Option represents a functional option for configuring an analysis.
// Options allow customization of the analysis behavior, such as adding
// progress listeners or replacing the region and keyword catalog.
//
// Options follow the functional options pattern, allowing for flexible
// and extensible configuration of the analysis engine.
type Option func(*config)

// WithProgressListener creates an Option that configures a progress listener
// for monitoring analysis events in real-time.
//
// The provided listener will receive events throughout the analysis
// lifecycle: file start and completion, each sheet's start, its fixed
// milestones (columns 10%, ratings 30%, departments 60%, regions 80%,
// complete 100%) and any failure.
//
// Parameters:
//   - listener: An implementation of events.Listener that will receive progress events
//
// Returns:
//   - Option: A functional option that can be passed to AnalyzeFile
//
// Example:
//
//	listener := events.NewFuncListener(func(e events.ProgressEvent) {
//		fmt.Printf("%s %s %d%%\n", e.Sheet, e.Status, e.Percent)
//	})
//
//	results, err := AnalyzeFile("reviews.xlsx", WithProgressListener(listener))
func WithProgressListener(listener events.Listener) Option {
	return func(c *config) {
		c.listener = listener
	}
}

// WithCatalog creates an Option that replaces the built-in catalog of
// regions, column keywords and qualitative rating phrases.
//
// Example:
//
//	cat, err := catalog.Load("catalog.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	results, err := AnalyzeFile("reviews.xlsx", WithCatalog(cat))
func WithCatalog(cat *catalog.Catalog) Option {
	return func(c *config) {
		c.catalog = cat
	}
}

// WithConcurrency creates an Option limiting how many sheets are analyzed
// at the same time. Values below one keep the default.
func WithConcurrency(n int) Option {
	return func(c *config) {
		c.concurrency = n
	}
}

// WithContext creates an Option that bounds the analysis by ctx. Sheets
// that have not started when ctx ends are reported as failed.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		c.ctx = ctx
	}
}

// AnalyzeFile analyzes every sheet of the workbook at path and returns the
// result of each sheet keyed by sheet name.
//
// Supported formats are .xlsx, .xlsm, .xltx, .xltm and .csv; a CSV file is
// treated as a workbook with a single sheet named after the file.
//
// Each sheet is analyzed independently. The unit, rating and region columns
// are inferred from the header names and cell contents, ratings are
// converted to the 1-5 scale, departments are ranked by average rating and
// the regional breakdown is built from a region column, from department
// names, or as a synthetic aggregated view when neither names a region.
//
// Parameters:
//   - path: Path to the workbook
//   - options: Variadic functional options for configuring the analysis
//
// Returns:
//   - map[string]*analysis.Result: The result of every sheet, keyed by sheet name
//   - error: Any error that occurred while loading the file, or the failures
//     of individual sheets. When some sheets fail, the results of the sheets
//     that completed are still returned alongside the error.
func AnalyzeFile(path string, options ...Option) (map[string]*analysis.Result, error) {
	cfg := &config{
		catalog: catalog.Default(),
		ctx:     context.Background(),
	}
	for _, option := range options {
		option(cfg)
	}

	runner := engine.NewRunner(
		analysis.New(cfg.catalog),
		cfg.listener,
		engine.WithConcurrency(cfg.concurrency),
	)

	report, err := runner.AnalyzeFile(cfg.ctx, path)
	if report == nil {
		return nil, err
	}

	results := report.Results()
	if err != nil {
		return results, err
	}

	if failed := report.Failed(); len(failed) > 0 {
		msgs := make([]string, len(failed))
		for i, f := range failed {
			msgs[i] = fmt.Sprintf("%s: %s", f.Sheet, f.Error)
		}
		return results, fmt.Errorf("failed to analyze %d sheet(s): %s", len(failed), strings.Join(msgs, "; "))
	}

	return results, nil
}
