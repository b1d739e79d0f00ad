package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile is a helper that creates a file (and any parent directories)
// under dir.
func writeFile(t *testing.T, dir, rel, body string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestTypeForName(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"a.css", "text/css"},
		{"site.js", "application/javascript"},
		{"logo.png", "image/png"},
		{"photo.jpg", "image/jpeg"},
		{"photo.jpeg", "image/jpeg"},
		{"anim.gif", "image/gif"},
		{"icon.svg", "image/svg+xml"},
		{"favicon.ico", "image/x-icon"},
		{"index.html", "text/html"},
		{"data.json", "application/json"},
		// Extension matching is case-sensitive.
		{"b.JS", "application/octet-stream"},
		{"INDEX.HTML", "application/octet-stream"},
		// Unknown or missing extensions fall through to the binary default.
		{"c.unknownext", "application/octet-stream"},
		{"d", "application/octet-stream"},
		// Only the segment after the last dot counts, and dots in directory
		// names are not extensions.
		{"archive.tar.gz", "application/octet-stream"},
		{"v1.2/readme", "application/octet-stream"},
		{"assets/site.css", "text/css"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TypeForName(tc.name), "name %q", tc.name)
	}
}

func TestEnumerate_SortedAndTyped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<html>home</html>")
	writeFile(t, dir, "site.css", "body {}")
	writeFile(t, dir, "app.js", "console.log(1)")

	objects, err := Enumerate(context.Background(), dir, false, "", "index.html", "error.html")
	require.NoError(t, err)
	require.Len(t, objects, 4)

	// Sorted by relative path, with the synthesized error document slotted in.
	var rels []string
	for _, o := range objects {
		rels = append(rels, o.RelPath)
	}
	assert.Equal(t, []string{"app.js", "error.html", "index.html", "site.css"}, rels)

	assert.Equal(t, "application/javascript", objects[0].ContentType)
	assert.Equal(t, "text/html", objects[1].ContentType)
	assert.Equal(t, "text/html", objects[2].ContentType)
	assert.Equal(t, "text/css", objects[3].ContentType)
}

func TestEnumerate_Deterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<html></html>")
	writeFile(t, dir, "a.css", "a {}")
	writeFile(t, dir, "z.js", "z()")

	first, err := Enumerate(context.Background(), dir, false, "", "index.html", "error.html")
	require.NoError(t, err)
	second, err := Enumerate(context.Background(), dir, false, "", "index.html", "error.html")
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].RelPath, second[i].RelPath)
		assert.Equal(t, first[i].Key, second[i].Key)
		assert.Equal(t, first[i].Fingerprint, second[i].Fingerprint)
	}
}

func TestEnumerate_ErrorDocumentIsInline(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<html></html>")

	objects, err := Enumerate(context.Background(), dir, false, "", "index.html", "error.html")
	require.NoError(t, err)

	var errorDoc *Object
	for _, o := range objects {
		if o.RelPath == "error.html" {
			errorDoc = o
		}
	}
	require.NotNil(t, errorDoc)
	assert.True(t, errorDoc.Inline())
	assert.Empty(t, errorDoc.SourcePath)
	assert.NotEmpty(t, errorDoc.Body)
	assert.Equal(t, "text/html", errorDoc.ContentType)
	assert.Len(t, errorDoc.Fingerprint, 64)
}

func TestEnumerate_ErrorDocumentConflict(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<html></html>")
	writeFile(t, dir, "error.html", "my own error page")

	_, err := Enumerate(context.Background(), dir, false, "", "index.html", "error.html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error.html")
	assert.Contains(t, err.Error(), "conflicts")
}

func TestEnumerate_EntryDocumentRequired(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "about.html", "<html></html>")

	_, err := Enumerate(context.Background(), dir, false, "", "index.html", "error.html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index.html")
}

func TestEnumerate_EntryDocumentMustBeTopLevel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pages/index.html", "<html></html>")
	writeFile(t, dir, "about.html", "<html></html>")

	// Recursive enumeration sees pages/index.html, but that is not the top
	// level, so the entry document is still missing.
	_, err := Enumerate(context.Background(), dir, true, "", "index.html", "error.html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index.html")
}

func TestEnumerate_RecursiveAndPrefix(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<html></html>")
	writeFile(t, dir, "css/site.css", "body {}")
	writeFile(t, dir, "img/logo.png", "not-really-a-png")

	objects, err := Enumerate(context.Background(), dir, true, "v2/", "index.html", "error.html")
	require.NoError(t, err)
	require.Len(t, objects, 4)

	byRel := make(map[string]*Object)
	for _, o := range objects {
		byRel[o.RelPath] = o
	}
	require.Contains(t, byRel, "css/site.css")
	assert.Equal(t, "v2/css/site.css", byRel["css/site.css"].Key)
	assert.Equal(t, "v2/index.html", byRel["index.html"].Key)
	assert.Equal(t, "v2/error.html", byRel["error.html"].Key)
}

func TestEnumerate_NonRecursiveIgnoresSubdirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<html></html>")
	writeFile(t, dir, "css/site.css", "body {}")

	objects, err := Enumerate(context.Background(), dir, false, "", "index.html", "error.html")
	require.NoError(t, err)

	for _, o := range objects {
		assert.NotEqual(t, "css/site.css", o.RelPath)
	}
}

func TestEnumerate_SkipsDotfiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<html></html>")
	writeFile(t, dir, ".DS_Store", "junk")
	writeFile(t, dir, ".hidden/secret.html", "<html></html>")

	objects, err := Enumerate(context.Background(), dir, true, "", "index.html", "error.html")
	require.NoError(t, err)

	for _, o := range objects {
		assert.NotContains(t, o.RelPath, ".DS_Store")
		assert.NotContains(t, o.RelPath, ".hidden")
	}
}

func TestEnumerate_FingerprintTracksContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<html>v1</html>")

	before, err := Enumerate(context.Background(), dir, false, "", "index.html", "error.html")
	require.NoError(t, err)

	writeFile(t, dir, "index.html", "<html>v2</html>")
	after, err := Enumerate(context.Background(), dir, false, "", "index.html", "error.html")
	require.NoError(t, err)

	var fpBefore, fpAfter string
	for _, o := range before {
		if o.RelPath == "index.html" {
			fpBefore = o.Fingerprint
		}
	}
	for _, o := range after {
		if o.RelPath == "index.html" {
			fpAfter = o.Fingerprint
		}
	}
	assert.NotEqual(t, fpBefore, fpAfter)
}
