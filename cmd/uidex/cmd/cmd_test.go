package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uidex/uidex/pkg/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSplitPackageVersion(t *testing.T) {
	tests := []struct {
		arg     string
		name    string
		version string
	}{
		{"react", "react", ""},
		{"react@18.2.0", "react", "18.2.0"},
		{"@mui/material", "@mui/material", ""},
		{"@mui/material@5.15.0", "@mui/material", "5.15.0"},
		{"lodash.debounce@4.0.8", "lodash.debounce", "4.0.8"},
	}
	for _, tt := range tests {
		name, ver := splitPackageVersion(tt.arg)
		assert.Equal(t, tt.name, name, tt.arg)
		assert.Equal(t, tt.version, ver, tt.arg)
	}
}

func TestIsStorybookURL(t *testing.T) {
	assert.True(t, isStorybookURL("https://storybook.example.com"))
	assert.True(t, isStorybookURL("http://localhost:6006"))
	assert.True(t, isStorybookURL("www.example.com/storybook"))

	assert.False(t, isStorybookURL("react"))
	assert.False(t, isStorybookURL("@mui/material"))
	assert.False(t, isStorybookURL("antd@5.12.0"))
	assert.False(t, isStorybookURL("lodash.debounce"))
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "uidex "+version.Version)
	assert.Contains(t, out, "commit:")
}

func TestVersionCommand_Short(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", out)
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "uidex version "+version.Version+"\n", out)
}

func TestStatsClear_RequiresYes(t *testing.T) {
	_, err := execute(t, "stats", "--clear")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestIndexCommand_RequiresArg(t *testing.T) {
	_, err := execute(t, "index")
	require.Error(t, err)
}

func TestSearchCommand_RequiresQuery(t *testing.T) {
	_, err := execute(t, "search")
	require.Error(t, err)
}
