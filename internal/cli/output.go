package cli

import (
	"io"

	"github.com/perfmap/perfmap/internal/style"
	"github.com/spf13/viper"
)

// render writes data in the format selected by --output. Text output is
// delegated to text, which may be nil for machine-only data.
func render(w io.Writer, data any, text func(io.Writer)) {
	switch viper.GetString("output") {
	case "json":
		style.PrintJSON(w, data)
	case "yaml":
		style.PrintYAML(w, data)
	default:
		if text != nil {
			text(w)
			return
		}
		style.PrintJSON(w, data)
	}
}

// isText reports whether human readable output is selected.
func isText() bool {
	format := viper.GetString("output")
	return format == "" || format == "text"
}
