package workspace

import (
	"time"

	"github.com/google/uuid"
)

// RunIDLayout is the minute-granularity base of every run id.
const RunIDLayout = "run-date-060102-time-1504"

// RunIDGenerator produces run identifiers.
//
// The base id only distinguishes runs started in different minutes. When
// UniqueSuffix is set (the default from NewRunIDGenerator) a short random
// suffix is appended so that runs started within the same minute never
// share a directory namespace.
type RunIDGenerator struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// UniqueSuffix appends "-<8 hex chars>" to the minute stamp.
	UniqueSuffix bool
}

// NewRunIDGenerator returns a generator using the wall clock.
func NewRunIDGenerator(uniqueSuffix bool) *RunIDGenerator {
	return &RunIDGenerator{Now: time.Now, UniqueSuffix: uniqueSuffix}
}

// NewRunID returns a new run identifier, e.g. run-date-241201-time-1430-1f2e3d4c.
func (g *RunIDGenerator) NewRunID() string {
	now := time.Now
	if g != nil && g.Now != nil {
		now = g.Now
	}

	id := now().Format(RunIDLayout)
	if g != nil && g.UniqueSuffix {
		id += "-" + uuid.New().String()[:8]
	}
	return id
}
