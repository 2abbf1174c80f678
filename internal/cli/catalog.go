package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/perfmap/perfmap/internal/catalog"
	"github.com/perfmap/perfmap/internal/schema"
	"github.com/perfmap/perfmap/internal/style"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// catalogCmd groups the catalog subcommands
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect, export and validate region catalogs",
	Long: `A catalog defines the canonical regions with their aliases, the keywords
used to detect columns, and the qualitative rating phrases.

perfmap ships with an embedded catalog. Pass --catalog to any command to use
a custom one instead.`,
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate catalog files",
	Long: `Validate catalog files against the catalog JSON Schema and the semantic
rules (unique region ids, coordinates in range, scores within 1 to 5).

Examples:
  perfmap catalog validate regions.yaml
  perfmap catalog validate --output json regions.yaml other.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateCatalogs(cmd.OutOrStdout(), args)
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active catalog",
	Long: `Show the regions of the active catalog. Use --output yaml or json for the
full document.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.Load(viper.GetString("catalog"))
		if err != nil {
			return err
		}

		render(cmd.OutOrStdout(), cat, func(w io.Writer) {
			printCatalog(w, cat)
		})
		return nil
	},
}

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the embedded catalog",
	Long: `Print the embedded catalog document. Redirect it to a file to start a
custom catalog.

Examples:
  perfmap catalog export > regions.yaml`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = cmd.OutOrStdout().Write(catalog.DefaultYAML())
	},
}

var catalogShowAll bool

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogValidateCmd, catalogShowCmd, catalogExportCmd)

	catalogValidateCmd.Flags().BoolVar(&catalogShowAll, "show-all", false, "show all validation results, including successful ones")
}

// ValidationResult represents the result of validating a catalog file
type ValidationResult struct {
	File     string        `json:"file" yaml:"file"`
	Valid    bool          `json:"valid" yaml:"valid"`
	Duration time.Duration `json:"duration_ms" yaml:"duration_ms"`
	Errors   []string      `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// ValidationSummary represents the summary of all validation results
type ValidationSummary struct {
	Total    int                `json:"total" yaml:"total"`
	Valid    int                `json:"valid" yaml:"valid"`
	Invalid  int                `json:"invalid" yaml:"invalid"`
	Duration time.Duration      `json:"total_duration_ms" yaml:"total_duration_ms"`
	Results  []ValidationResult `json:"results" yaml:"results"`
}

func validateCatalogs(w io.Writer, files []string) error {
	start := time.Now()

	validator, err := schema.NewValidator(&catalog.Catalog{})
	if err != nil {
		return err
	}

	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		result := validateCatalogFile(validator, file)
		results = append(results, result)

		// Show progress if not quiet and not JSON/YAML output
		if !viper.GetBool("quiet") && isText() {
			if result.Valid {
				if catalogShowAll {
					style.Success(w, fmt.Sprintf("%s (%v)", file, result.Duration))
				}
			} else {
				style.Error(w, fmt.Sprintf("%s (%v)", file, result.Duration))
				for _, errMsg := range result.Errors {
					fmt.Fprintf(w, "  %s\n", errMsg)
				}
			}
		}
	}

	summary := ValidationSummary{
		Total:    len(results),
		Duration: time.Since(start),
		Results:  results,
	}
	for _, result := range results {
		if result.Valid {
			summary.Valid++
		} else {
			summary.Invalid++
		}
	}

	render(w, summary, func(w io.Writer) {
		printValidationSummary(w, summary)
	})

	if summary.Invalid > 0 {
		return fmt.Errorf("%d of %d catalog(s) failed validation", summary.Invalid, summary.Total)
	}
	return nil
}

func validateCatalogFile(validator *schema.Validator, filename string) (result ValidationResult) {
	start := time.Now()
	result = ValidationResult{
		File:   filename,
		Valid:  true,
		Errors: []string{},
	}

	defer func() {
		result.Duration = time.Since(start)
		log.Debug().
			Str("file", filename).
			Bool("valid", result.Valid).
			Dur("duration", result.Duration).
			Msg("Validated catalog file")
	}()

	data, err := os.ReadFile(filename)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	if errs := validator.ValidateYAML(data); len(errs) > 0 {
		result.Valid = false
		for _, e := range errs {
			result.Errors = append(result.Errors, e.String())
		}
		return result
	}

	// Semantic rules the schema cannot express
	if _, err := catalog.Parse(data); err != nil {
		result.Valid = false

		var verr *catalog.ValidationError
		if errors.As(err, &verr) {
			result.Errors = append(result.Errors, verr.Problems...)
		} else {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	return result
}

func printValidationSummary(w io.Writer, summary ValidationSummary) {
	if viper.GetBool("quiet") {
		return
	}

	fmt.Fprintln(w)
	if summary.Invalid == 0 {
		style.Success(w, fmt.Sprintf("All %d catalog(s) are valid (%v)", summary.Total, summary.Duration))
	} else {
		style.Error(w, fmt.Sprintf("%d of %d catalog(s) failed validation (%v)", summary.Invalid, summary.Total, summary.Duration))
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(w, "\nDetailed results:\n")
		headers := []string{"File", "Status", "Duration"}
		rows := make([][]string, len(summary.Results))
		for i, result := range summary.Results {
			status := style.SuccessIcon() + " Valid"
			if !result.Valid {
				status = style.ErrorIcon() + " Invalid"
			}
			rows[i] = []string{result.File, status, result.Duration.String()}
		}
		style.PrintTable(w, headers, rows)
	}
}

func printCatalog(w io.Writer, cat *catalog.Catalog) {
	rows := make([][]string, len(cat.Regions))
	for i, r := range cat.Regions {
		rows[i] = []string{
			r.ID,
			r.Name,
			strconv.FormatFloat(r.Lat, 'f', 4, 64),
			strconv.FormatFloat(r.Lng, 'f', 4, 64),
			style.ScoreStyle(r.Color).Render(r.Color),
			strconv.Itoa(len(r.Aliases)),
		}
	}
	style.PrintTable(w, []string{"ID", "Name", "Lat", "Lng", "Color", "Aliases"}, rows)

	fmt.Fprintf(w, "\n%s %s\n", style.MutedStyle.Render("Unspecified department:"), cat.UnspecifiedUnit)
	for _, q := range cat.Qualitative {
		fmt.Fprintf(w, "%s %s\n", style.MutedStyle.Render(fmt.Sprintf("Score %.1f:", q.Score)), strings.Join(q.Phrases, ", "))
	}
}
