// Package storybook parses public Storybook documentation sites into
// component stories.
//
// Storybook sites are a moving target: depending on version and build
// they expose stories through JSON-LD scripts, window.__STORYBOOK
// globals, story-page links, or plain sidebar navigation. The parser
// tries all four and dedupes the result.
package storybook

import "time"

// Story is one component story found on a storybook site.
type Story struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Snippet     string   `json:"snippet,omitempty"`
	URL         string   `json:"url,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// Source records which extraction strategy found the story:
	// jsonld, script, story-page, or navigation.
	Source string `json:"source,omitempty"`
}

// Site is the parse result for one storybook URL.
type Site struct {
	URL         string    `json:"url"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Version     string    `json:"version,omitempty"`
	Stories     []Story   `json:"stories"`
	ParsedAt    time.Time `json:"parsed_at"`
}
