package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Input length limits.
const (
	MaxSourceURLLength = 2048
	MaxFilenameLength  = 255
	maxTitleFragment   = 80
)

var (
	sourceURLPattern = regexp.MustCompile(
		`^(https?://)?(www\.)?(m\.)?(tiktok\.com|vm\.tiktok\.com|vt\.tiktok\.com|t\.tiktok\.com|douyin\.com|v\.douyin\.com)/`,
	)
	servedFilenamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-. ]+$`)
	unsafeFilenameRune    = regexp.MustCompile(`[^a-zA-Z0-9_\-.]+`)
)

// IsSourceURL reports whether s points at a supported video platform.
// Passing does not mean the URL is downloadable.
func IsSourceURL(s string) bool {
	if len(s) > MaxSourceURLLength {
		return false
	}
	return sourceURLPattern.MatchString(s)
}

// IsServedFilename reports whether name is safe to join with the storage
// directory: a single path element made of letters, digits, underscore,
// hyphen, period and space.
func IsServedFilename(name string) bool {
	if name == "" || len(name) > MaxFilenameLength {
		return false
	}
	if name == "." || strings.Contains(name, "..") {
		return false
	}
	return servedFilenamePattern.MatchString(name)
}

func SourceURL(s string) string {
	switch {
	case strings.TrimSpace(s) == "":
		return "TikTok URL is required."
	case len(s) > MaxSourceURLLength:
		return fmt.Sprintf("URL must be %d characters or fewer", MaxSourceURLLength)
	case !IsSourceURL(s):
		return "Invalid TikTok or Douyin URL provided."
	}
	return ""
}

func ServedFilename(name string) string {
	if !IsServedFilename(name) {
		return "Invalid filename"
	}
	return ""
}

// SanitizeFilename rewrites a realized artifact name so it always passes
// IsServedFilename. The prefix up to and including the first underscore and
// the final extension are kept; the title fragment in between is reduced to
// safe characters and truncated.
func SanitizeFilename(name string) string {
	ext := ""
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		ext = unsafeFilenameRune.ReplaceAllString(name[i+1:], "")
		name = name[:i]
	}

	prefix, title, found := strings.Cut(name, "_")
	prefix = unsafeFilenameRune.ReplaceAllString(prefix, "_")
	if found {
		title = unsafeFilenameRune.ReplaceAllString(title, "_")
		title = strings.ReplaceAll(title, "..", "_")
		title = strings.Trim(title, "_.")
		if len(title) > maxTitleFragment {
			title = strings.Trim(title[:maxTitleFragment], "_.")
		}
		if title == "" {
			title = "video"
		}
		prefix += "_" + title
	}
	if ext != "" {
		prefix += "." + ext
	}
	return prefix
}
