package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// orgNameRegex matches GitHub organization and user logins.
var orgNameRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)

// ValidateOrgName validates a GitHub organization login.
func ValidateOrgName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidConfig, "organization cannot be empty")
	}
	if !orgNameRegex.MatchString(name) {
		return New(ErrCodeInvalidConfig, "invalid organization name: %q", name)
	}
	return nil
}

// repoNameRegex matches repository names accepted by GitHub.
var repoNameRegex = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)

// ValidateRepoName validates a repository name for use in API paths.
// It rejects names that could be used for path traversal.
func ValidateRepoName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "repository name cannot be empty")
	}
	if name == "." || name == ".." {
		return New(ErrCodeInvalidInput, "invalid repository name: %q", name)
	}
	if !repoNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid repository name: %q", name)
	}
	return nil
}

// ValidatePath validates a file path within a repository for safety.
// The empty path is the repository root and is valid.
//
// Validation rules:
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
