package analysis

// Stage names a fixed milestone of an analysis run.
type Stage string

const (
	StageColumns     Stage = "columns"
	StageRatings     Stage = "ratings"
	StageDepartments Stage = "departments"
	StageRegions     Stage = "regions"
	StageComplete    Stage = "complete"
)

// Percent is the progress value reported when a stage begins.
func (s Stage) Percent() int {
	switch s {
	case StageColumns:
		return 10
	case StageRatings:
		return 30
	case StageDepartments:
		return 60
	case StageRegions:
		return 80
	case StageComplete:
		return 100
	}
	return 0
}

// Status is a human readable label for the stage.
func (s Stage) Status() string {
	switch s {
	case StageColumns:
		return "Detecting columns"
	case StageRatings:
		return "Processing ratings"
	case StageDepartments:
		return "Analyzing departments"
	case StageRegions:
		return "Analyzing regions"
	case StageComplete:
		return "Complete"
	}
	return string(s)
}

// Progress receives milestone notifications. It is write only; the analyzer
// never reads anything back.
type Progress interface {
	Report(stage Stage, percent int)
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(stage Stage, percent int)

func (f ProgressFunc) Report(stage Stage, percent int) {
	f(stage, percent)
}

func report(p Progress, stage Stage) {
	if p != nil {
		p.Report(stage, stage.Percent())
	}
}
