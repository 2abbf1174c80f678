package server

import (
	"os"
	"testing"

	_ "github.com/perfmap/perfmap/internal/testhelper"
)

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
