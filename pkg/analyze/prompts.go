package analyze

import "fmt"

// Output caps for single-stage item analyses.
const (
	commitCap     = 128
	issueCap      = 128
	discussionCap = 256
	readmeCap     = 256
	repoPageCap   = 700
)

func commitPrompts(author, message, patch string) (system, user string) {
	system = fmt.Sprintf("You are reviewing a commit patch from GitHub user %s. "+
		"Focus on changes that alter code or behaviour in a meaningful way. "+
		"Use the commit message as the main clue to intent and do not overstate small edits. "+
		"Keep the analysis short and factual.", author)
	user = fmt.Sprintf("Commit message: %s\n\nPatch:\n%s\n\n"+
		"Summarize the main changes, emphasizing only what touches core functionality. "+
		"Tell textual or cosmetic edits apart from substantial code changes. "+
		"Finish with a realistic assessment of what %s's commit means for the project. "+
		"Stay under 110 tokens.", message, patch, author)
	return system, user
}

func issuePrompts(author, title, thread, target string) (system, user string) {
	system = fmt.Sprintf("User %q opened the GitHub issue %q. "+
		"Analyze the posts in the thread: identify the core problem, the solutions proposed, "+
		"and how participants moved the discussion forward.", author, title)
	user = fmt.Sprintf("Issue thread:\n%s\n\n"+
		"Give a concise analysis of the central problem and the solutions proposed or agreed on. "+
		"Highlight the part %s played in resolving or advancing it. "+
		"Stay under 110 tokens.", thread, target)
	return system, user
}

func discussionPrompts(thread, target string) (system, user string) {
	system = fmt.Sprintf("Analyze the GitHub discussion provided. Identify the main topic, "+
		"what participants did, the key viewpoints and any consensus reached. "+
		"Call out individual contributions, especially %s part. Be brief.", target)
	user = fmt.Sprintf("Discussion:\n%s\n\n"+
		"Summarize the topic, participant actions, main viewpoints and outcome. "+
		"Emphasize %s role in driving the discussion or reaching a resolution. "+
		"Stay under 192 tokens.", thread, target)
	return system, user
}

func readmePrompts(content string) (system, user string) {
	system = "Objectively analyze a GitHub project profile and its README. " +
		"Extract facts about the project's features and stated goals without judging its value."
	user = fmt.Sprintf("Profile and README:\n%s\n\n"+
		"Write a concise summary of the project's purpose in its domain, "+
		"its main features and its goals. Stay under 110 tokens.", content)
	return system, user
}

func repoPagePrompts(text string) (system, user string) {
	system = "You are given the flattened text of a GitHub repository home page. " +
		"Extract factual information from its Header, About, Releases, Contributors, Languages and README sections. " +
		"Present each section separately and avoid subjective judgments."
	user = fmt.Sprintf("Repository page text:\n%s\n\n"+
		"Report, section by section: 1) header counts such as forks, stars, issues and pull requests; "+
		"2) the About block with description, topics, stars, watchers and forks; "+
		"3) the latest release and total releases; 4) the number of contributors; "+
		"5) the language breakdown; 6) a short summary of the README.", text)
	return system, user
}

// targetLabel names whose role item analyses should emphasize.
func targetLabel(target string) string {
	if target == "" {
		return "key participants"
	}
	return target
}
