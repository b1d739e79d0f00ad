// Package content enumerates a site's files into stored-object descriptors:
// one per file under the content root, keyed by relative path, typed by a
// fixed extension table and fingerprinted by content hash. Enumeration is
// deterministic for a fixed directory snapshot so that re-running it never
// produces a spurious diff.
package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/stratushq/stratus/internal/ctxlog"
)

// errorDocumentBody is the inline error page. It is synthesized rather than
// read from disk so every site gets a working error document without
// shipping one.
const errorDocumentBody = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Page not found</title>
  <style>
    body { font-family: sans-serif; text-align: center; margin-top: 15vh; color: #333; }
    h1 { font-size: 3rem; margin-bottom: 0.5rem; }
  </style>
</head>
<body>
  <h1>404</h1>
  <p>The page you are looking for does not exist.</p>
  <p><a href="/">Back to the start</a></p>
</body>
</html>
`

// Object describes one file destined for the bucket. SourcePath is empty for
// the synthesized error document, whose bytes live in Body instead.
type Object struct {
	RelPath     string
	Key         string
	SourcePath  string
	Body        []byte
	ContentType string
	Fingerprint string
}

// Inline reports whether the object's bytes are synthesized rather than
// backed by a file.
func (o *Object) Inline() bool {
	return o.SourcePath == ""
}

// Enumerate lists the files under dir (top level only, or recursively) and
// returns one Object per file plus the inline error document, sorted by
// relative path. The entry document must exist at the top level of dir; the
// error document must not, since its content is generated.
func Enumerate(ctx context.Context, dir string, recursive bool, keyPrefix, entryDocument, errorDocument string) ([]*Object, error) {
	logger := ctxlog.FromContext(ctx)

	relPaths, err := listFiles(dir, recursive)
	if err != nil {
		return nil, err
	}

	foundEntry := false
	var objects []*Object
	for _, rel := range relPaths {
		if rel == entryDocument {
			foundEntry = true
		}
		if rel == errorDocument {
			return nil, fmt.Errorf("content directory %s contains %q, which conflicts with the generated error document", dir, errorDocument)
		}

		src := filepath.Join(dir, filepath.FromSlash(rel))
		fingerprint, err := fingerprintFile(src)
		if err != nil {
			return nil, fmt.Errorf("failed to fingerprint %s: %w", src, err)
		}
		objects = append(objects, &Object{
			RelPath:     rel,
			Key:         keyPrefix + rel,
			SourcePath:  src,
			ContentType: TypeForName(rel),
			Fingerprint: fingerprint,
		})
	}

	if !foundEntry {
		return nil, fmt.Errorf("entry document %q not found at the top level of %s", entryDocument, dir)
	}

	body := []byte(errorDocumentBody)
	sum := sha256.Sum256(body)
	objects = append(objects, &Object{
		RelPath:     errorDocument,
		Key:         keyPrefix + errorDocument,
		Body:        body,
		ContentType: TypeForName(errorDocument),
		Fingerprint: hex.EncodeToString(sum[:]),
	})

	sort.Slice(objects, func(i, j int) bool { return objects[i].RelPath < objects[j].RelPath })
	logger.Debug("Enumerated content directory.", "dir", dir, "objects", len(objects))
	return objects, nil
}

// listFiles returns slash-separated relative paths of regular files under
// dir, sorted. Dotfiles are skipped: editors and platforms drop artifacts
// like .DS_Store into content directories.
func listFiles(dir string, recursive bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read content directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content path %s is not a directory", dir)
	}

	var rels []string
	if recursive {
		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != dir && d.Name()[0] == '.' {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			rels = append(rels, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk content directory %s: %w", dir, err)
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list content directory %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || entry.Name()[0] == '.' {
				continue
			}
			rels = append(rels, entry.Name())
		}
	}

	sort.Strings(rels)
	return rels, nil
}

func fingerprintFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
