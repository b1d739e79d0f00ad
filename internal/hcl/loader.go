package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/stratushq/stratus/internal/config"
	"github.com/stratushq/stratus/internal/ctxlog"
	"github.com/stratushq/stratus/internal/schema"
)

// Loader reads .hcl site definition files and translates them into the
// agnostic config model. It implements config.Loader.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a Loader with a fresh HCL parser.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load parses every .hcl file reachable from the given paths (a path may be
// a single file or a directory) and merges them into one model. File order
// is lexicographic so declaration indices are stable across runs.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := collectFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl configuration files found in %s", strings.Join(paths, ", "))
	}
	logger.Debug("Collected configuration files.", "count", len(files))

	model := &config.Model{}
	for _, path := range files {
		file, diags := l.parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %s", path, diags.Error())
		}

		var site schema.SiteConfig
		if diags := gohcl.DecodeBody(file.Body, nil, &site); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode %s: %s", path, diags.Error())
		}

		if err := l.translate(&site, model); err != nil {
			return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
		}
		logger.Debug("Loaded configuration file.", "path", path)
	}

	return model, nil
}

// collectFiles expands file and directory paths into a sorted list of .hcl
// files. Directories are not searched recursively; a site definition is a
// flat set of files.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read configuration path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("cannot list configuration directory %s: %w", path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".hcl") {
				continue
			}
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// extractBodyAttributes flattens an arguments block body into a map of
// attribute name to raw expression. Nested blocks are rejected by HCL here,
// which is intentional: arguments are a flat attribute record.
func extractBodyAttributes(body hcl.Body) (map[string]hcl.Expression, error) {
	if body == nil {
		return map[string]hcl.Expression{}, nil
	}
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid arguments block: %s", diags.Error())
	}
	exprs := make(map[string]hcl.Expression, len(attrs))
	for name, attr := range attrs {
		exprs[name] = attr.Expr
	}
	return exprs, nil
}
