package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/perfmap/perfmap/internal/infer"
	"github.com/perfmap/perfmap/internal/style"
	"github.com/spf13/cobra"
)

// columnsCmd represents the columns command
var columnsCmd = &cobra.Command{
	Use:   "columns [file]",
	Short: "List sheet columns and the detected roles",
	Long: `List the columns of every sheet together with the department, rating
and region columns that automatic analysis would pick.

Use it to choose the columns for 'perfmap analyze --unit-column'.

Examples:
  perfmap columns reviews.xlsx
  perfmap columns reviews.xlsx --sheet Q1 --output json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listColumns(cmd.OutOrStdout(), args[0])
	},
}

var columnsSheets []string

func init() {
	rootCmd.AddCommand(columnsCmd)

	columnsCmd.Flags().StringSliceVar(&columnsSheets, "sheet", nil, "only list the named sheets (repeatable)")
}

// SheetColumns describes the columns of one sheet.
type SheetColumns struct {
	Sheet     string          `json:"sheet" yaml:"sheet"`
	Records   int             `json:"records" yaml:"records"`
	Columns   []string        `json:"columns" yaml:"columns"`
	Selection infer.Selection `json:"selection" yaml:"selection"`
}

func listColumns(w io.Writer, path string) error {
	_, analyzer, err := loadAnalyzer()
	if err != nil {
		return err
	}

	_, wb, err := loadWorkbook(path, columnsSheets)
	if err != nil {
		return err
	}

	out := make([]SheetColumns, 0, len(wb.Sheets))
	for _, ds := range wb.Sheets {
		out = append(out, SheetColumns{
			Sheet:     ds.Name,
			Records:   ds.Len(),
			Columns:   ds.Columns,
			Selection: analyzer.Infer(ds),
		})
	}

	render(w, out, func(w io.Writer) {
		for _, sheet := range out {
			printSheetColumns(w, sheet)
		}
	})
	return nil
}

func printSheetColumns(w io.Writer, sheet SheetColumns) {
	fmt.Fprintf(w, "\n%s %s\n", style.HeaderStyle.Render(sheet.Sheet),
		style.MutedStyle.Render(fmt.Sprintf("(%d records)", sheet.Records)))

	rows := make([][]string, len(sheet.Columns))
	for i, col := range sheet.Columns {
		rows[i] = []string{strconv.Itoa(i + 1), col, strings.Join(roles(sheet.Selection, col), ", ")}
	}
	style.PrintTable(w, []string{"#", "Column", "Detected as"}, rows)
}

func roles(sel infer.Selection, col string) []string {
	var out []string
	if sel.Unit == col {
		out = append(out, "department")
	}
	if sel.Rating == col {
		out = append(out, "rating")
	}
	if sel.Region == col {
		out = append(out, "region")
	}
	return out
}
