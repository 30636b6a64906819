package report

// Stage is the progress of one report run.
type Stage int

const (
	StageInit Stage = iota
	StageProfileFetched
	StageCommitsProcessed
	StageIssuesProcessed
	StageDiscussionsProcessed
	StageCorrelated
	StageRendered
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageProfileFetched:
		return "profile_fetched"
	case StageCommitsProcessed:
		return "commits_processed"
	case StageIssuesProcessed:
		return "issues_processed"
	case StageDiscussionsProcessed:
		return "discussions_processed"
	case StageCorrelated:
		return "correlated"
	case StageRendered:
		return "rendered"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}
