package component

import (
	"regexp"
	"sort"
	"strings"
)

// componentPatterns match the ways READMEs typically reference
// components: markdown headings, JSX usage, and import statements.
var componentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`##\s+([A-Z][a-zA-Z0-9]+)`),         // ## ComponentName
	regexp.MustCompile(`###\s+([A-Z][a-zA-Z0-9]+)`),        // ### ComponentName
	regexp.MustCompile(`<([A-Z][a-zA-Z0-9]+)`),             // <ComponentName
	regexp.MustCompile(`import\s+\{?\s*([A-Z][a-zA-Z0-9]+)`), // import { ComponentName }
}

// excludeWords are capitalized README words that look like component
// names but never are.
var excludeWords = map[string]bool{
	"Installation": true, "Usage": true, "Example": true, "Examples": true,
	"API": true, "Props": true, "Introduction": true, "Getting": true,
	"Started": true, "Documentation": true, "License": true,
	"Contributing": true, "Changelog": true, "README": true,
	"Table": true, "Contents": true,
}

// ExtractComponentNames scans a README for component names.
// Returns the accepted names sorted alphabetically, plus the matches
// that were dropped by the exclude list or minimum length filter.
func ExtractComponentNames(readme string) (names []string, excluded []string) {
	if readme == "" {
		return nil, nil
	}

	found := make(map[string]bool)
	for _, pattern := range componentPatterns {
		for _, match := range pattern.FindAllStringSubmatch(readme, -1) {
			found[match[1]] = true
		}
	}

	droppedSet := make(map[string]bool)
	for name := range found {
		if excludeWords[name] || len(name) <= 2 {
			droppedSet[name] = true
			continue
		}
		names = append(names, name)
	}

	for name := range droppedSet {
		excluded = append(excluded, name)
	}

	// Map iteration order is random; callers need determinism.
	sort.Strings(names)
	sort.Strings(excluded)
	return names, excluded
}

// headingPrefixes used when locating a component's README section.
var headingPrefixes = []string{"## ", "### "}

// SectionSnippet returns the README section for the named component:
// the text between its heading and the next heading, capped at
// maxSnippetLen. Falls back to the README head when no heading exists.
func SectionSnippet(readme, name string) string {
	if readme == "" {
		return ""
	}

	lines := strings.Split(readme, "\n")
	start := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, prefix := range headingPrefixes {
			if strings.TrimSpace(strings.TrimPrefix(trimmed, prefix)) == name && strings.HasPrefix(trimmed, prefix) {
				start = i + 1
			}
		}
		if start == i+1 {
			break
		}
	}

	var section string
	if start >= 0 {
		var sb strings.Builder
		for _, line := range lines[start:] {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "#") {
				break
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		section = strings.TrimSpace(sb.String())
	}

	if section == "" {
		section = strings.TrimSpace(readme)
	}

	if len(section) > maxSnippetLen {
		section = section[:maxSnippetLen]
	}
	return section
}
