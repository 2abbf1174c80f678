package testhelper

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

// init disables logging for tests unless explicitly enabled
func init() {
	if isTesting() && os.Getenv("PERFMAP_TEST_LOG") == "" {
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}
}

// isTesting returns true if we're currently running tests
func isTesting() bool {
	return testing.Testing() ||
		os.Getenv("GO_TEST") != "" ||
		(len(os.Args) > 1 && os.Args[1] == "test")
}

// Fixture is the analysis sheet most package tests share: two departments
// with a mix of numeric and qualitative ratings across two regions.
func Fixture() (header []string, records [][]string) {
	header = []string{"الإدارة", "المنطقة", "التقييم الحالي", "رقم الموظف"}
	records = [][]string{
		{"الموارد البشرية", "الرياض", "4", "1001"},
		{"الموارد البشرية", "Riyadh", "ممتاز", "1002"},
		{"تقنية المعلومات", "جدة", "4.6", "1003"},
		{"تقنية المعلومات", "جده", "", "1004"},
		{"المالية", "الدمام", "متوسط", "1005"},
	}
	return header, records
}

// FixtureCSV renders Fixture as CSV text.
func FixtureCSV() string {
	header, records := Fixture()
	out := joinCSV(header)
	for _, r := range records {
		out += joinCSV(r)
	}
	return out
}

func joinCSV(fields []string) string {
	line := ""
	for i, f := range fields {
		if i > 0 {
			line += ","
		}
		line += f
	}
	return line + "\n"
}
