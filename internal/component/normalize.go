package component

import (
	"net/url"

	dexerrors "github.com/uidex/uidex/internal/errors"
	"github.com/uidex/uidex/internal/registry"
	"github.com/uidex/uidex/internal/storybook"
)

// Skipped describes one source item the normalizer dropped.
// Skipped items never fail their siblings.
type Skipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// NormalizePackage turns npm registry payloads into component records.
// Component names come from the README; package-level description,
// keywords, and homepage fill the descriptive payload. Returns
// ERR_202_PARSE_FAILED when no component can be extracted at all.
func NormalizePackage(meta *registry.PackageMetadata, info *registry.PackageInfo, readme string) ([]*Record, []Skipped, error) {
	library := meta.Name
	version := info.Version
	if version == "" {
		version = meta.DistTags["latest"]
	}

	description := info.Description
	if description == "" {
		description = meta.Description
	}

	keywords := info.Keywords
	if len(keywords) == 0 {
		keywords = meta.Keywords
	}

	sourceURL := info.Homepage
	if sourceURL == "" {
		sourceURL = meta.Homepage
	}
	if sourceURL == "" {
		sourceURL = "https://www.npmjs.com/package/" + library
	}

	names, excluded := ExtractComponentNames(readme)

	var skipped []Skipped
	for _, name := range excluded {
		skipped = append(skipped, Skipped{Name: name, Reason: "excluded readme heading"})
	}

	if len(names) == 0 {
		return nil, skipped, dexerrors.ParseError("no components found in README", nil).
			WithDetail("package", library).
			WithDetail("version", version).
			WithSuggestion("The package README may not document individual components.")
	}

	records := make([]*Record, 0, len(names))
	for _, name := range names {
		rec := &Record{
			SourceKind:  SourceRegistry,
			Library:     library,
			Name:        name,
			Version:     version,
			Description: description,
			Snippet:     SectionSnippet(readme, name),
			Tags:        keywords,
			Category:    InferCategory(name),
			SourceURL:   sourceURL,
			Keywords:    keywords,
		}
		rec.Finalize()
		records = append(records, rec)
	}

	return records, skipped, nil
}

// NormalizeStorybook turns a parsed storybook site into component
// records, one per story. Stories without a usable name are skipped;
// duplicates keep the first occurrence. Returns ERR_202_PARSE_FAILED
// when the site yields no records.
func NormalizeStorybook(site *storybook.Site, library string) ([]*Record, []Skipped, error) {
	if library == "" {
		library = site.Title
	}
	if library == "" {
		library = hostOf(site.URL)
	}

	version := site.Version
	if version == "" {
		version = "latest"
	}

	var (
		records []*Record
		skipped []Skipped
		seen    = make(map[string]bool)
	)

	for _, story := range site.Stories {
		name := story.Name
		if name == "" {
			name = story.Title
		}
		if name == "" {
			skipped = append(skipped, Skipped{Name: story.ID, Reason: "missing component name"})
			continue
		}
		if seen[name] {
			skipped = append(skipped, Skipped{Name: name, Reason: "duplicate story"})
			continue
		}
		seen[name] = true

		description := story.Description
		if description == "" {
			description = site.Description
		}

		sourceURL := story.URL
		if sourceURL == "" {
			sourceURL = site.URL
		}

		rec := &Record{
			SourceKind:  SourceStorybook,
			Library:     library,
			Name:        name,
			Version:     version,
			Description: description,
			Snippet:     story.Snippet,
			Tags:        story.Tags,
			Category:    InferCategory(name),
			SourceURL:   sourceURL,
		}
		rec.Finalize()
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, skipped, dexerrors.ParseError("no components found on storybook site", nil).
			WithDetail("url", site.URL).
			WithSuggestion("The site may not be a storybook, or may render entirely client-side.")
	}

	return records, skipped, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
