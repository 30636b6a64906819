// Package activity defines the records and bundles that flow through a weekly report run.
package activity

import (
	"strings"
	"time"
)

// Kind identifies what a Record was built from.
type Kind int

const (
	KindCommit Kind = iota
	KindIssue
	KindDiscussion
	KindMeta
)

func (k Kind) String() string {
	switch k {
	case KindCommit:
		return "commit"
	case KindIssue:
		return "issue"
	case KindDiscussion:
		return "discussion"
	case KindMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// Record is one unit of evidence about a contributor's work.
// SourceURL is unique within a fetch batch.
type Record struct {
	OccurredAt  time.Time // best effort, may be zero
	Contributor string
	Title       string
	SourceURL   string
	Summary     string
	Kind        Kind
}

// WithSummary returns a copy of r carrying the generated summary.
func (r Record) WithSummary(summary string) Record {
	r.Summary = summary
	return r
}

// Bundle holds every record of one kind for a contributor.
// Line i of URLs corresponds to line i of Summaries.
type Bundle struct {
	Contributor string
	URLs        string
	Summaries   string
	count       int
}

// NewBundle starts a bundle from its first record.
func NewBundle(contributor, url, summary string) *Bundle {
	return &Bundle{Contributor: contributor, URLs: oneLine(url), Summaries: oneLine(summary), count: 1}
}

// Append adds one more record, keeping URLs and Summaries aligned.
func (b *Bundle) Append(url, summary string) {
	b.URLs += "\n" + oneLine(url)
	b.Summaries += "\n" + oneLine(summary)
	b.count++
}

// Count reports how many records were folded into the bundle.
func (b *Bundle) Count() int { return b.count }

// URLList splits URLs back into its lines.
func (b *Bundle) URLList() []string {
	if b.URLs == "" {
		return nil
	}
	return strings.Split(b.URLs, "\n")
}

// oneLine folds embedded newlines so a single record never spans two lines.
func oneLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}

// Category is a report input section.
type Category int

const (
	CategoryProfile Category = iota
	CategoryCommits
	CategoryIssues
	CategoryDiscussions
)

// Categories lists every category in report order.
var Categories = []Category{CategoryProfile, CategoryCommits, CategoryIssues, CategoryDiscussions}

func (c Category) String() string {
	switch c {
	case CategoryProfile:
		return "profile"
	case CategoryCommits:
		return "commits"
	case CategoryIssues:
		return "issues"
	case CategoryDiscussions:
		return "discussions"
	default:
		return "unknown"
	}
}

// Profile is the community profile of a repository.
type Profile struct {
	FullName    string
	Description string
	URL         string
	HasReadme   bool
}

// Comment is one reply on an issue or discussion thread.
type Comment struct {
	Author string
	Body   string
}

// Issue is an issue touched during the window. Record.Contributor is the
// issue author.
type Issue struct {
	Record
	Body   string
	Labels []string
	Number int
}

// Discussion is a discussion thread with its comments inlined.
type Discussion struct {
	Record
	Body     string
	Comments []Comment
	Upvotes  int
}

// Query selects the activity of one repository over a window.
// An empty User means every contributor.
type Query struct {
	Since time.Time
	Owner string
	Repo  string
	User  string
}
