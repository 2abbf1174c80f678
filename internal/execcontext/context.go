package execcontext

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunContext carries the cancellation context and output streams of a
// single command or request.
type RunContext struct {
	Context context.Context
	StdOut  io.Writer
	StdErr  io.Writer
}

func (rc RunContext) Write(p []byte) (n int, err error) {
	return rc.StdOut.Write(p)
}

func (rc RunContext) Printf(format string, v ...any) {
	fmt.Fprintf(rc.StdOut, format, v...)
}

// IsCancelled returns true if the run context has been cancelled
func (rc RunContext) IsCancelled() bool {
	select {
	case <-rc.Context.Done():
		return true
	default:
		return false
	}
}

// Logger returns the context logger annotated with the run id.
func (rc RunContext) Logger(runID string) zerolog.Logger {
	return zerolog.Ctx(rc.Context).With().Str("run_id", runID).Logger()
}

// NewRunID returns a unique identifier for an analysis run.
func NewRunID() string {
	return fmt.Sprintf("run_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
}
