package bootloader

import "time"

// Programming phases reported in Progress.Phase.
const (
	PhaseErasing     = "erasing"
	PhaseProgramming = "programming"
	PhaseFinishing   = "finishing"
	PhaseComplete    = "complete"
)

// Progress contains information about the programming progress.
// Passed to ProgressCallback during programming operations.
type Progress struct {
	// Phase is one of the Phase constants
	Phase string

	// Current is the number of sectors erased or blocks programmed so far
	Current int

	// Total is the number of sectors or blocks in the current phase
	Total int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// BytesWritten is the number of image bytes committed so far
	BytesWritten int

	// ElapsedTime is the time elapsed since programming started
	ElapsedTime time.Duration
}

// ProgressCallback is called periodically during programming to report progress.
// Implementations should return quickly to avoid blocking the programming operation.
type ProgressCallback func(Progress)
