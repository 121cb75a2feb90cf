package component

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dexerrors "github.com/uidex/uidex/internal/errors"
	"github.com/uidex/uidex/internal/registry"
	"github.com/uidex/uidex/internal/storybook"
)

func TestNormalizePackage(t *testing.T) {
	meta := &registry.PackageMetadata{
		Name:        "example-ui",
		Description: "package description",
		DistTags:    map[string]string{"latest": "1.2.0"},
		Keywords:    []string{"react", "components"},
		Homepage:    "https://example-ui.dev",
	}
	info := &registry.PackageInfo{
		Name:        "example-ui",
		Version:     "1.2.0",
		Description: "version description",
	}

	records, skipped, err := NormalizePackage(meta, info, sampleReadme)
	require.NoError(t, err)
	require.Len(t, records, 3)

	byName := make(map[string]*Record, len(records))
	for _, rec := range records {
		require.NoError(t, rec.Validate())
		byName[rec.Name] = rec
	}

	button := byName["Button"]
	require.NotNil(t, button)
	assert.Equal(t, SourceRegistry, button.SourceKind)
	assert.Equal(t, "example-ui", button.Library)
	assert.Equal(t, "1.2.0", button.Version)
	assert.Equal(t, "version description", button.Description)
	assert.Equal(t, []string{"react", "components"}, button.Keywords)
	assert.Equal(t, "https://example-ui.dev", button.SourceURL)
	assert.Contains(t, button.Snippet, "A clickable button.")
	assert.Equal(t, "atoms", button.Category)

	skippedNames := make([]string, 0, len(skipped))
	for _, s := range skipped {
		assert.Equal(t, "excluded readme heading", s.Reason)
		skippedNames = append(skippedNames, s.Name)
	}
	assert.Contains(t, skippedNames, "Installation")
}

func TestNormalizePackage_Fallbacks(t *testing.T) {
	meta := &registry.PackageMetadata{
		Name:        "example-ui",
		Description: "package description",
		DistTags:    map[string]string{"latest": "1.2.0"},
		Keywords:    []string{"react"},
	}
	info := &registry.PackageInfo{Name: "example-ui"}

	records, _, err := NormalizePackage(meta, info, "## Button\n\nA button.\n")
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Version, description, keywords, and URL fall back to the
	// packument level when the version manifest is sparse.
	assert.Equal(t, "1.2.0", records[0].Version)
	assert.Equal(t, "package description", records[0].Description)
	assert.Equal(t, []string{"react"}, records[0].Keywords)
	assert.Equal(t, "https://www.npmjs.com/package/example-ui", records[0].SourceURL)
}

func TestNormalizePackage_NoComponents(t *testing.T) {
	meta := &registry.PackageMetadata{Name: "lodash", DistTags: map[string]string{"latest": "4.17.21"}}
	info := &registry.PackageInfo{Name: "lodash", Version: "4.17.21"}

	_, _, err := NormalizePackage(meta, info, "utility functions, nothing capitalized here")
	require.Error(t, err)
	assert.Equal(t, dexerrors.ErrCodeParseFailed, dexerrors.GetCode(err))
}

func TestNormalizeStorybook(t *testing.T) {
	site := &storybook.Site{
		URL:         "https://storybook.example.dev",
		Title:       "Example Design System",
		Description: "site description",
		Version:     "8.1.0",
		ParsedAt:    time.Now(),
		Stories: []storybook.Story{
			{ID: "button--primary", Name: "Button", Description: "a button", URL: "https://storybook.example.dev/?path=/story/button--primary"},
			{ID: "card--default", Name: "Card"},
			{ID: "button--secondary", Name: "Button"}, // duplicate
			{ID: "mystery--story"},                    // no name
		},
	}

	records, skipped, err := NormalizeStorybook(site, "")
	require.NoError(t, err)
	require.Len(t, records, 2)

	button := records[0]
	assert.Equal(t, SourceStorybook, button.SourceKind)
	assert.Equal(t, "Example Design System", button.Library)
	assert.Equal(t, "8.1.0", button.Version)
	assert.Equal(t, "a button", button.Description)
	assert.Equal(t, "https://storybook.example.dev/?path=/story/button--primary", button.SourceURL)

	card := records[1]
	assert.Equal(t, "site description", card.Description, "story without description uses site description")
	assert.Equal(t, "https://storybook.example.dev", card.SourceURL)

	require.Len(t, skipped, 2)
	assert.Equal(t, Skipped{Name: "Button", Reason: "duplicate story"}, skipped[0])
	assert.Equal(t, Skipped{Name: "mystery--story", Reason: "missing component name"}, skipped[1])
}

func TestNormalizeStorybook_LibraryFallsBackToHost(t *testing.T) {
	site := &storybook.Site{
		URL:     "https://storybook.example.dev/path",
		Stories: []storybook.Story{{ID: "button--primary", Name: "Button"}},
	}

	records, _, err := NormalizeStorybook(site, "")
	require.NoError(t, err)
	assert.Equal(t, "storybook.example.dev", records[0].Library)
	assert.Equal(t, "latest", records[0].Version)
}

func TestNormalizeStorybook_ExplicitLibraryWins(t *testing.T) {
	site := &storybook.Site{
		URL:     "https://storybook.example.dev",
		Title:   "Example Design System",
		Stories: []storybook.Story{{ID: "button--primary", Name: "Button"}},
	}

	records, _, err := NormalizeStorybook(site, "my-library")
	require.NoError(t, err)
	assert.Equal(t, "my-library", records[0].Library)
}

func TestNormalizeStorybook_NoStories(t *testing.T) {
	site := &storybook.Site{URL: "https://storybook.example.dev"}

	_, _, err := NormalizeStorybook(site, "")
	require.Error(t, err)
	assert.Equal(t, dexerrors.ErrCodeParseFailed, dexerrors.GetCode(err))
}
