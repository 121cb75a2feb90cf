// Package registry implements the npm registry source client.
//
// The client speaks to https://registry.npmjs.org (or a configured
// mirror): /{name} for packuments and /-/v1/search for search. It does
// no caching of its own; the cache layer wraps it.
package registry

import (
	"encoding/json"
	"sort"
)

// PackageMetadata is the package-level view of a packument.
type PackageMetadata struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	DistTags    map[string]string `json:"dist_tags,omitempty"`
	Versions    []string          `json:"versions,omitempty"`
	Keywords    []string          `json:"keywords,omitempty"`
	Homepage    string            `json:"homepage,omitempty"`
	Repository  string            `json:"repository,omitempty"`
	Author      string            `json:"author,omitempty"`
	License     string            `json:"license,omitempty"`
	ModifiedAt  string            `json:"modified_at,omitempty"`
}

// LatestVersion returns the version the "latest" dist-tag points at.
func (m *PackageMetadata) LatestVersion() string {
	return m.DistTags["latest"]
}

// PackageInfo is one version's manifest.
type PackageInfo struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Description      string            `json:"description,omitempty"`
	Keywords         []string          `json:"keywords,omitempty"`
	Homepage         string            `json:"homepage,omitempty"`
	License          string            `json:"license,omitempty"`
	Dependencies     map[string]string `json:"dependencies,omitempty"`
	PeerDependencies map[string]string `json:"peer_dependencies,omitempty"`
	Types            string            `json:"types,omitempty"`
}

// HasTypes reports whether the package ships TypeScript definitions.
func (i *PackageInfo) HasTypes() bool {
	return i.Types != ""
}

// SearchResult is one hit from the registry search endpoint.
type SearchResult struct {
	Name        string   `json:"name"`
	Version     string   `json:"version,omitempty"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Date        string   `json:"date,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	Score       float64  `json:"score"`
}

// flexString decodes npm fields that are historically either a bare
// string or an object (repository {type,url}, author {name,email},
// license {type,url}).
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}

	var obj struct {
		URL  string `json:"url"`
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// Old packuments carry odd shapes here; treat as absent.
		*f = ""
		return nil
	}
	switch {
	case obj.URL != "":
		*f = flexString(obj.URL)
	case obj.Name != "":
		*f = flexString(obj.Name)
	default:
		*f = flexString(obj.Type)
	}
	return nil
}

// packument is the wire shape of GET /{name}.
type packument struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	DistTags    map[string]string          `json:"dist-tags"`
	Versions    map[string]versionManifest `json:"versions"`
	Keywords    []string                   `json:"keywords"`
	Homepage    string                     `json:"homepage"`
	Repository  flexString                 `json:"repository"`
	Author      flexString                 `json:"author"`
	License     flexString                 `json:"license"`
	Time        map[string]string          `json:"time"`
	Readme      string                     `json:"readme"`
}

// versionManifest is the wire shape of one entry in packument.versions.
type versionManifest struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Description      string            `json:"description"`
	Keywords         []string          `json:"keywords"`
	Homepage         string            `json:"homepage"`
	License          flexString        `json:"license"`
	Dependencies     map[string]string `json:"dependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
	Types            string            `json:"types"`
	Typings          string            `json:"typings"`
	Readme           string            `json:"readme"`
}

// metadata converts the wire packument to the public metadata view.
func (p *packument) metadata() *PackageMetadata {
	versions := make([]string, 0, len(p.Versions))
	for v := range p.Versions {
		versions = append(versions, v)
	}
	sort.Strings(versions)

	return &PackageMetadata{
		Name:        p.Name,
		Description: p.Description,
		DistTags:    p.DistTags,
		Versions:    versions,
		Keywords:    p.Keywords,
		Homepage:    p.Homepage,
		Repository:  string(p.Repository),
		Author:      string(p.Author),
		License:     string(p.License),
		ModifiedAt:  p.Time["modified"],
	}
}

// info converts one version manifest to the public info view.
func (m *versionManifest) info() *PackageInfo {
	types := m.Types
	if types == "" {
		types = m.Typings
	}

	return &PackageInfo{
		Name:             m.Name,
		Version:          m.Version,
		Description:      m.Description,
		Keywords:         m.Keywords,
		Homepage:         m.Homepage,
		License:          string(m.License),
		Dependencies:     m.Dependencies,
		PeerDependencies: m.PeerDependencies,
		Types:            types,
	}
}

// searchResponse is the wire shape of GET /-/v1/search.
type searchResponse struct {
	Objects []struct {
		Package struct {
			Name        string   `json:"name"`
			Version     string   `json:"version"`
			Description string   `json:"description"`
			Keywords    []string `json:"keywords"`
			Date        string   `json:"date"`
			Publisher   struct {
				Username string `json:"username"`
			} `json:"publisher"`
		} `json:"package"`
		Score struct {
			Final float64 `json:"final"`
		} `json:"score"`
	} `json:"objects"`
}
