package subscriber

import (
	"regexp"
	"strings"

	"github.com/nextlevelbuilder/myclaw/internal/profile"
)

var codingLanguageKeywords = map[string]string{
	"golang":     "Go",
	" go ":       "Go",
	"python":     "Python",
	"javascript": "JavaScript",
	"typescript": "TypeScript",
	"rust":       "Rust",
	"java":       "Java",
	"ruby":       "Ruby",
	"c++":        "C++",
}

var naturalLanguageKeywords = map[string]string{
	"respond in spanish":    "Spanish",
	"respond in french":     "French",
	"respond in japanese":   "Japanese",
	"respond in mandarin":   "Mandarin",
	"speak spanish":         "Spanish",
	"reply in spanish":      "Spanish",
}

var osKeywords = map[string]string{
	"macos":   "macOS",
	"mac os":  "macOS",
	"linux":   "Linux",
	"windows": "Windows",
}

var shellKeywords = []string{"zsh", "bash", "fish", "powershell"}

var packageManagerKeywords = []string{"npm", "yarn", "pnpm", "pip", "cargo", "go mod", "bundler"}

var nodeVersionPattern = regexp.MustCompile(`(?i)node(?:\.js)?\s*v?(\d+(?:\.\d+){0,2})`)

// ExtractSignals scans one user message for coarse heuristic signals. It
// is deliberately conservative — a miss just means the profile doesn't
// learn that fact yet, not an error.
func ExtractSignals(content string) profile.Signals {
	lower := strings.ToLower(content)
	var s profile.Signals

	for needle, lang := range naturalLanguageKeywords {
		if strings.Contains(lower, needle) {
			s.PreferredLanguage = lang
			break
		}
	}

	for needle, lang := range codingLanguageKeywords {
		if strings.Contains(lower, needle) {
			s.CodingLanguages = append(s.CodingLanguages, lang)
		}
	}

	for needle, osName := range osKeywords {
		if strings.Contains(lower, needle) {
			s.Environment.OS = osName
			break
		}
	}
	for _, sh := range shellKeywords {
		if strings.Contains(lower, sh) {
			s.Environment.Shell = sh
			break
		}
	}
	for _, pm := range packageManagerKeywords {
		if strings.Contains(lower, pm) {
			s.Environment.PackageManager = pm
			break
		}
	}
	if m := nodeVersionPattern.FindStringSubmatch(content); len(m) == 2 {
		s.Environment.NodeVersion = m[1]
	}

	if strings.Contains(lower, "prefer") || strings.Contains(lower, "always use") || strings.Contains(lower, "please use") {
		trimmed := strings.TrimSpace(content)
		if len(trimmed) > 200 {
			trimmed = trimmed[:200]
		}
		s.Preferences = append(s.Preferences, trimmed)
	}

	return s
}
