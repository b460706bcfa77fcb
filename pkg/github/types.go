package github

import "time"

// Repo represents a GitHub repository.
type Repo struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	FullName      string     `json:"full_name"`
	Description   string     `json:"description"`
	Private       bool       `json:"private"`
	Fork          bool       `json:"fork"`
	Archived      bool       `json:"archived"`
	DefaultBranch string     `json:"default_branch"`
	Language      string     `json:"language"`
	PushedAt      *time.Time `json:"pushed_at"`
}

// User is the account a token authenticates as.
type User struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ContentItem represents an item in a repository directory listing.
type ContentItem struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // "file", "dir", "symlink" or "submodule"
	Size int    `json:"size"`
}

// IsDir reports whether the item is a directory.
func (i ContentItem) IsDir() bool { return i.Type == "dir" }

// FileContent represents the content of a file.
type FileContent struct {
	Path    string `json:"path"`
	Size    int    `json:"size"`
	SHA     string `json:"sha"`
	Content string `json:"content"`
}

// apiContentResponse is the GitHub API response for a single content item.
type apiContentResponse struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Type     string `json:"type"`
	Size     int    `json:"size"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// FilterRepos drops archived repositories and forks unless included.
// The input order is preserved.
func FilterRepos(repos []Repo, includeArchived, includeForks bool) []Repo {
	out := make([]Repo, 0, len(repos))
	for _, r := range repos {
		if r.Archived && !includeArchived {
			continue
		}
		if r.Fork && !includeForks {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Names returns the repository names in order.
func Names(repos []Repo) []string {
	names := make([]string, len(repos))
	for i, r := range repos {
		names[i] = r.Name
	}
	return names
}
