package structure

import "github.com/dgallion1/flashgest/internal/doctree"

// Role is the structural role of a single run.
type Role int

const (
	RoleBody Role = iota
	RoleHeading
)

// Stats are range-wide statistics a Classifier may consult.
type Stats struct {
	AverageFontSize float64
	Runs            int
}

// ComputeStats returns the mean font size over runs (0 for no runs).
func ComputeStats(runs []doctree.TextRun) Stats {
	if len(runs) == 0 {
		return Stats{}
	}
	var sum float64
	for _, r := range runs {
		sum += r.FontSize
	}
	return Stats{
		AverageFontSize: sum / float64(len(runs)),
		Runs:            len(runs),
	}
}

// Classifier decides whether a run is a heading run.
type Classifier interface {
	Classify(run doctree.TextRun, stats Stats) Role
}

// DefaultHeadingMargin is how many points above average a run must be to
// count as a heading on size alone.
const DefaultHeadingMargin = 1.0

// FontClassifier marks a run as heading if it is noticeably larger than the
// average, or bold and at least average size.
type FontClassifier struct {
	Margin float64
}

func (c FontClassifier) Classify(run doctree.TextRun, stats Stats) Role {
	avg := stats.AverageFontSize
	if run.FontSize > avg+c.Margin {
		return RoleHeading
	}
	if run.Bold && run.FontSize >= avg {
		return RoleHeading
	}
	return RoleBody
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(run doctree.TextRun, stats Stats) Role

func (f ClassifierFunc) Classify(run doctree.TextRun, stats Stats) Role {
	return f(run, stats)
}
