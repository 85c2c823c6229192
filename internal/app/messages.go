package app

import "fmt"

// PhaseMsg announces the pipeline phase currently running.
type PhaseMsg struct {
	Name string
}

// TaskProgressMsg updates the extraction progress bar.
type TaskProgressMsg struct {
	Done   int
	Total  int
	Series string
}

// RunFinishedMsg ends the TUI, carrying the pipeline's final error.
type RunFinishedMsg struct {
	Err error
}

func (p PhaseMsg) String() string { return fmt.Sprintf("Phase: %s", p.Name) }
func (t TaskProgressMsg) String() string {
	return fmt.Sprintf("Tasks %d/%d (%s)", t.Done, t.Total, t.Series)
}
