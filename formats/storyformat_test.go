package formats

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"twee-kit/story"
)

func formatJS(name, version, source string) string {
	return `window.storyFormat({"name":"` + name + `","version":"` + version + `","source":"` + source + `"});`
}

// ============================================
// Parse / Write
// ============================================

func TestParse(t *testing.T) {
	f, err := Parse(`window.storyFormat({"name":"N","version":"1"});`)
	require.NoError(t, err)
	assert.Equal(t, "N", f.Name)
	assert.Equal(t, "1", f.Version)
	assert.Empty(t, f.Source)
}

func TestParseDefaults(t *testing.T) {
	f, err := Parse(`window.storyFormat({});`)
	require.NoError(t, err)
	assert.Equal(t, "Untitled Story Format", f.Name)
	assert.Equal(t, "0.0.0", f.Version)
}

func TestParseMissingPrefix(t *testing.T) {
	_, err := Parse(`storyFormat({"name":"N"});`)
	require.Error(t, err)
	assert.Equal(t, "ERROR: The story format data does not start with 'window.storyFormat('.", err.Error())

	// prefisso e suffisso mancanti: vince il prefisso
	_, err = Parse(`{"name":"N"}`)
	assert.Equal(t, ErrMissingPrefix.Error(), err.Error())
}

func TestParseMissingSuffix(t *testing.T) {
	_, err := Parse(`window.storyFormat({"name":"N"})`)
	require.Error(t, err)
	assert.Equal(t, "ERROR: The story format data does not end with ');'.", err.Error())
}

func TestParseInvalidJSON(t *testing.T) {
	for _, src := range []string{
		`window.storyFormat(null);`,
		`window.storyFormat();`,
		`window.storyFormat({"name":});`,
	} {
		_, err := Parse(src)
		require.Error(t, err, src)
		assert.Equal(t, "ERROR: The story format data is not valid JSON.", err.Error(), src)
		assert.True(t, errors.Is(err, story.ErrInvalidStoryFormat), src)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	f := New()
	f.Name = "Harlowe"
	f.Version = "3.3.8"
	f.Source = "<html>{{STORY_DATA}}</html>"

	out, err := f.Write()
	require.NoError(t, err)
	assert.Equal(t,
		`window.storyFormat({"name":"Harlowe","version":"3.3.8","author":"","description":"","image":"","url":"","license":"","proofing":false,"source":"<html>{{STORY_DATA}}</html>"});`,
		out)

	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, f, again)
}

func TestFromJSON(t *testing.T) {
	f, err := FromJSON(`{"name":"SugarCube","version":"2.37.3","proofing":true}`)
	require.NoError(t, err)
	assert.Equal(t, "sugarcube-2.37.3", f.ID())
	assert.True(t, f.Proofing)
}

func TestValidate(t *testing.T) {
	f := New()
	f.Source = "x"
	assert.NoError(t, f.Validate())

	f.Version = "3.3"
	assert.Error(t, f.Validate())

	f.Version = "2.0.0-beta.1"
	assert.NoError(t, f.Validate())

	f.Source = ""
	assert.Equal(t, ErrEmptySource, f.Validate())
}

// ============================================
// Registry
// ============================================

func mustFormat(t *testing.T, name, version string) *StoryFormat {
	t.Helper()
	f, err := Parse(formatJS(name, version, "src-"+version))
	require.NoError(t, err)
	return f
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mustFormat(t, "Harlowe", "3.2.0")))
	require.NoError(t, r.Register(mustFormat(t, "Harlowe", "3.3.8")))
	require.NoError(t, r.Register(mustFormat(t, "Harlowe", "2.1.0")))

	cases := map[string]string{
		"harlowe":       "3.3.8",
		"Harlowe":       "3.3.8",
		"harlowe-3":     "3.3.8",
		"harlowe-3.2":   "3.2.0",
		"harlowe-2":     "2.1.0",
		"harlowe-3.2.0": "3.2.0",
	}
	for id, want := range cases {
		f, err := r.Lookup(id)
		require.NoError(t, err, id)
		assert.Equal(t, want, f.Version, id)
	}

	_, err := r.Lookup("harlowe-4")
	require.Error(t, err)
	assert.Equal(t, "ERROR: The story format 'harlowe-4' is not available.", err.Error())
	assert.False(t, r.Has("sugarcube"))

	available := r.Available()
	require.Len(t, available, 3)
	assert.Equal(t, "3.3.8", available[0].Version)
	assert.Equal(t, []string{"harlowe"}, r.Names())
}

func TestRegistryReplacesSameVersion(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mustFormat(t, "Snowman", "2.0.2")))

	updated := mustFormat(t, "Snowman", "2.0.2")
	updated.Source = "nuovo"
	require.NoError(t, r.Register(updated))

	f, err := r.Lookup("snowman")
	require.NoError(t, err)
	assert.Equal(t, "nuovo", f.Source)
	assert.Len(t, r.Available(), 1)
}

func TestRegistryRejectsInvalidFormat(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(mustFormat(t, "X", "1")))

	empty := New()
	assert.Equal(t, ErrEmptySource, r.Register(empty))
}

// ============================================
// Caricamento da disco
// ============================================

func writeFormat(t *testing.T, dir, sub, content string) {
	t.Helper()
	path := filepath.Join(dir, sub)
	require.NoError(t, os.MkdirAll(path, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "format.js"), []byte(content), 0644))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFormat(t, dir, "harlowe-3", "\n"+formatJS("Harlowe", "3.3.8", "<html>{{STORY_DATA}}</html>")+"\n")
	writeFormat(t, dir, "snowman-2", formatJS("Snowman", "2.0.2", "<html></html>"))
	writeFormat(t, dir, "broken", `window.storyFormat({"name":"Broken","version":"x","source":"s"});`)
	writeFormat(t, dir, "nowrapper", `{"name":"Plain"}`)

	r := NewRegistry()
	n, err := r.LoadDir(dir)
	assert.Equal(t, 2, n)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)

	assert.True(t, r.Has("harlowe-3"))
	assert.True(t, r.Has("snowman"))
	assert.False(t, r.Has("broken"))
}

func TestCheckSchema(t *testing.T) {
	assert.NoError(t, CheckSchema([]byte(`{"version":"1.0.0","source":"x"}`)))
	assert.Error(t, CheckSchema([]byte(`{"version":"1.0.0"}`)))
	assert.Error(t, CheckSchema([]byte(`{"version":"1.0.0","source":"x","proofing":"yes"}`)))
}

func TestDefaultRegistry(t *testing.T) {
	f := mustFormat(t, "DefaultOnlyFormat", "1.0.0")
	require.NoError(t, RegisterFormat(f))

	assert.True(t, IsFormatRegistered("defaultonlyformat-1"))
	assert.Same(t, f, GetRegisteredFormat("DefaultOnlyFormat"))
	assert.Contains(t, GetAvailableFormats(), "defaultonlyformat")
	assert.Nil(t, GetRegisteredFormat("missing"))
}
