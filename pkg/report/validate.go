package report

import "strings"

// IsValidLogin validates a GitHub user or organization name.
// The server uses it to reject query parameters before any API call.
func IsValidLogin(login string) bool {
	// GitHub login rules:
	// - Max 39 characters
	// - Alphanumeric characters and hyphens
	// - No leading, trailing or consecutive hyphens
	if login == "" || len(login) > 39 {
		return false
	}
	if login[0] == '-' || login[len(login)-1] == '-' || strings.Contains(login, "--") {
		return false
	}
	for _, ch := range login {
		if !isAlnum(ch) && ch != '-' {
			return false
		}
	}
	return true
}

// IsValidRepoName validates a repository name.
func IsValidRepoName(name string) bool {
	if name == "" || len(name) > 100 || name == "." || name == ".." {
		return false
	}
	for _, ch := range name {
		if !isAlnum(ch) && ch != '-' && ch != '_' && ch != '.' {
			return false
		}
	}
	return true
}

// SplitRepo parses "owner/repo".
func SplitRepo(s string) (owner, repo string, ok bool) {
	owner, repo, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found || !IsValidLogin(owner) || !IsValidRepoName(repo) {
		return "", "", false
	}
	return owner, repo, true
}

func isAlnum(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
