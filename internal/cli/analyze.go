package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/perfmap/perfmap/internal/analysis"
	"github.com/perfmap/perfmap/internal/catalog"
	"github.com/perfmap/perfmap/internal/dataset"
	"github.com/perfmap/perfmap/internal/engine"
	"github.com/perfmap/perfmap/internal/execcontext"
	"github.com/perfmap/perfmap/internal/rating"
	"github.com/perfmap/perfmap/internal/style"
	pkgEvents "github.com/perfmap/perfmap/pkg/events"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a performance review export",
	Long: `Analyze every sheet of an Excel (.xlsx, .xlsm) or CSV file.

For each sheet this command:
- Detects the department, rating and region columns
- Converts ratings to the 1 to 5 scale
- Ranks the departments by average rating
- Aggregates employees and ratings per region

Pass --unit-column together with one or more --rating-column flags to skip
detection and average the named columns instead.

Examples:
  perfmap analyze reviews.xlsx                          # Analyze every sheet
  perfmap analyze reviews.xlsx --sheet Q1 --sheet Q2    # Analyze selected sheets
  perfmap analyze reviews.csv --output json             # JSON output for automation
  perfmap analyze reviews.xlsx --unit-column Department --rating-column "2023" --rating-column "2024"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runCtx := execcontext.RunContext{
			Context: cmd.Context(),
			StdOut:  cmd.OutOrStdout(),
			StdErr:  cmd.ErrOrStderr(),
		}
		if runCtx.Context == nil {
			runCtx.Context = context.Background()
		}

		return analyzeFile(runCtx, args[0])
	},
}

var (
	analyzeSheets        []string
	analyzeUnitColumn    string
	analyzeRatingColumns []string
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringSliceVar(&analyzeSheets, "sheet", nil, "only analyze the named sheets (repeatable)")
	analyzeCmd.Flags().StringVar(&analyzeUnitColumn, "unit-column", "", "department column for an explicit column analysis")
	analyzeCmd.Flags().StringSliceVar(&analyzeRatingColumns, "rating-column", nil, "rating columns for an explicit column analysis (repeatable)")
}

// loadAnalyzer builds an analyzer from the catalog selected by --catalog.
func loadAnalyzer() (*catalog.Catalog, *analysis.Analyzer, error) {
	cat, err := catalog.Load(viper.GetString("catalog"))
	if err != nil {
		return nil, nil, err
	}
	return cat, analysis.New(cat), nil
}

// loadWorkbook reads a file and keeps only the requested sheets. It returns
// the content hash alongside the workbook.
func loadWorkbook(path string, sheets []string) (string, *dataset.Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file: %w", err)
	}

	wb, err := dataset.Load(bytes.NewReader(data), path)
	if err != nil {
		return "", nil, err
	}

	if len(sheets) == 0 {
		return engine.FileID(data), wb, nil
	}

	selected := &dataset.Workbook{}
	for _, name := range sheets {
		ds, err := wb.Sheet(name)
		if err != nil {
			return "", nil, err
		}
		selected.Sheets = append(selected.Sheets, ds)
	}
	return engine.FileID(data), selected, nil
}

func analyzeFile(runCtx execcontext.RunContext, path string) error {
	ctx, cancel := signal.NotifyContext(runCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	runCtx.Context = ctx

	cat, analyzer, err := loadAnalyzer()
	if err != nil {
		return err
	}

	fileID, wb, err := loadWorkbook(path, analyzeSheets)
	if err != nil {
		return err
	}

	log.Info().
		Str("file", path).
		Str("file_id", fileID).
		Strs("sheets", wb.SheetNames()).
		Msg("Workbook loaded")

	if analyzeUnitColumn != "" || len(analyzeRatingColumns) > 0 {
		return analyzeColumns(runCtx, analyzer, wb)
	}

	var listener pkgEvents.Listener = &pkgEvents.NoopListener{}
	if isText() && !viper.GetBool("quiet") {
		listener = engine.NewProgressTracker(runCtx.StdErr)
	}

	runner := engine.NewRunner(analyzer, listener, engine.WithConcurrency(viper.GetInt("concurrency")))
	report, err := runner.AnalyzeWorkbook(runCtx.Context, fileID, path, wb)
	if err != nil {
		return err
	}

	render(runCtx.StdOut, report, func(w io.Writer) {
		printReport(w, cat, report)
	})

	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d sheet(s) failed analysis", len(failed), len(report.Sheets))
	}
	return nil
}

// ColumnAnalysis is the output of an explicit column analysis for one sheet.
type ColumnAnalysis struct {
	Sheet  string                 `json:"sheet" yaml:"sheet"`
	Result *analysis.CustomResult `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string                 `json:"error,omitempty" yaml:"error,omitempty"`
}

func analyzeColumns(runCtx execcontext.RunContext, analyzer *analysis.Analyzer, wb *dataset.Workbook) error {
	req := analysis.ColumnRequest{Unit: analyzeUnitColumn, Ratings: analyzeRatingColumns}

	var (
		out    []ColumnAnalysis
		failed int
	)
	for _, ds := range wb.Sheets {
		if runCtx.IsCancelled() {
			return fmt.Errorf("analysis interrupted: %w", runCtx.Context.Err())
		}

		res, err := analyzer.AnalyzeColumns(ds, req)
		entry := ColumnAnalysis{Sheet: ds.Name, Result: res}
		if err != nil {
			entry.Error = err.Error()
			failed++
		}
		out = append(out, entry)
	}

	render(runCtx.StdOut, out, func(w io.Writer) {
		for _, entry := range out {
			printColumnAnalysis(w, entry)
		}
	})

	if failed > 0 {
		return fmt.Errorf("%d of %d sheet(s) failed analysis", failed, len(out))
	}
	return nil
}

func printReport(w io.Writer, cat *catalog.Catalog, report *engine.Report) {
	for _, outcome := range report.Sheets {
		fmt.Fprintf(w, "\n%s\n", style.HeaderStyle.Render(outcome.Sheet))

		if outcome.Status == engine.SheetStatusFailed {
			style.Error(w, outcome.Error)
			continue
		}

		printResult(w, cat, outcome.Result)
	}

	fmt.Fprintf(w, "\n%s\n", style.DurationStyle.Render(fmt.Sprintf("Analyzed %d sheet(s) of %s in %s",
		len(report.Sheets), report.File, report.Duration.Round(time.Millisecond))))
}

func printResult(w io.Writer, cat *catalog.Catalog, res *analysis.Result) {
	fmt.Fprintf(w, "Records: %d  Valid ratings: %d  Average: %s\n",
		res.TotalRecords, res.ValidRatings, style.FormatScore(res.AvgRating, rating.Color(res.AvgRating)))

	columns := fmt.Sprintf("Columns: unit=%q rating=%q", res.Columns.Unit, res.Columns.Rating)
	if res.Columns.HasRegion() {
		columns += fmt.Sprintf(" region=%q", res.Columns.Region)
	}
	fmt.Fprintln(w, style.MutedStyle.Render(columns))

	if len(res.TopDepartments) > 0 {
		fmt.Fprintln(w)
		rows := make([][]string, len(res.TopDepartments))
		for i, d := range res.TopDepartments {
			rows[i] = []string{
				strconv.Itoa(i + 1),
				d.Name,
				style.FormatScore(d.Rating, rating.Color(d.Rating)),
				strconv.Itoa(d.Employees),
			}
		}
		style.PrintTable(w, []string{"#", "Department", "Rating", "Employees"}, rows)
	}

	if len(res.RegionalData) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%s\n", style.MutedStyle.Render("Regions ("+string(res.RegionSource)+")"))
	var rows [][]string
	for _, r := range cat.Regions {
		region, ok := res.RegionalData[r.ID]
		if !ok {
			continue
		}

		top, low := "-", "-"
		if region.TopDept != nil {
			top = region.TopDept.Name
		}
		if region.LowDept != nil {
			low = region.LowDept.Name
		}

		rows = append(rows, []string{
			region.Name,
			strconv.Itoa(region.Employees),
			style.FormatScore(region.AvgRating, region.Color),
			strconv.Itoa(region.Departments),
			top,
			low,
		})
	}
	style.PrintTable(w, []string{"Region", "Employees", "Average", "Departments", "Top", "Lowest"}, rows)
}

func printColumnAnalysis(w io.Writer, entry ColumnAnalysis) {
	fmt.Fprintf(w, "\n%s\n", style.HeaderStyle.Render(entry.Sheet))
	if entry.Error != "" {
		style.Error(w, entry.Error)
		return
	}

	res := entry.Result
	fmt.Fprintf(w, "Records: %d  Valid ratings: %d  Average: %s\n",
		res.TotalRecords, res.ValidRatings, style.FormatScore(res.AvgRating, rating.Color(res.AvgRating)))

	var rows [][]string
	for _, col := range res.ColumnsUsed.Ratings {
		detail, ok := res.ColumnDetails[col]
		if !ok {
			continue
		}
		rows = append(rows, []string{
			col,
			strconv.Itoa(detail.ValidRatings),
			style.FormatScore(detail.AvgRating, rating.Color(detail.AvgRating)),
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w)
		style.PrintTable(w, []string{"Column", "Valid", "Average"}, rows)
	}

	if len(res.TopDepartments) > 0 {
		fmt.Fprintln(w)
		rows = nil
		for i, d := range res.TopDepartments {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				d.Name,
				style.FormatScore(d.Rating, rating.Color(d.Rating)),
				strconv.Itoa(d.Employees),
			})
		}
		style.PrintTable(w, []string{"#", "Department", "Rating", "Employees"}, rows)
	}
}
