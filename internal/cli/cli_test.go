package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"bucket_name=my-site", "content_dir=./public"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"bucket_name": "my-site",
		"content_dir": "./public",
	}, vars)
}

func TestParseVars_ValueMayContainEquals(t *testing.T) {
	vars, err := parseVars([]string{"policy=a=b=c"})
	require.NoError(t, err)
	assert.Equal(t, "a=b=c", vars["policy"])
}

func TestParseVars_Invalid(t *testing.T) {
	for _, raw := range []string{"no-separator", "=value", ""} {
		_, err := parseVars([]string{raw})
		require.Error(t, err, "raw %q", raw)
		assert.Contains(t, err.Error(), "expected name=value")
	}
}

// writeSite creates a minimal deployable site on disk and returns the flags
// that point a command at it.
func writeSite(t *testing.T) []string {
	t.Helper()

	contentDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "index.html"), []byte("<html></html>"), 0o644))

	workDir := t.TempDir()
	configPath := filepath.Join(workDir, "site.hcl")
	site := `
variable "content_dir" {
  type = string
}

resource "storage_bucket" "site" {
  arguments {
    name = "my-site"
  }
}

content "assets" {
  bucket     = storage_bucket.site.name
  source_dir = var.content_dir
}
`
	require.NoError(t, os.WriteFile(configPath, []byte(site), 0o644))

	return []string{
		"-c", configPath,
		"--state", filepath.Join(workDir, "state.json"),
		"--plan-file", filepath.Join(workDir, "plan.json"),
		"--var", "content_dir=" + contentDir,
	}
}

// runCLI executes one command line against a fresh app.
func runCLI(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	logs := &bytes.Buffer{}
	cliApp := NewApp(out, logs, strings.NewReader(input))
	err := cliApp.RunContext(context.Background(), append([]string{"stratus"}, args...))
	return out.String(), err
}

func TestCLI_DryRunDeploy(t *testing.T) {
	args := append(writeSite(t), "--dry-run", "--auto-approve", "deploy")
	out, err := runCLI(t, "", args...)
	require.NoError(t, err)
	assert.Contains(t, out, "to create")
}

func TestCLI_Validate(t *testing.T) {
	args := append(writeSite(t), "validate")
	out, err := runCLI(t, "", args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid.")
}

func TestCLI_InvalidLogFormat(t *testing.T) {
	args := append(writeSite(t), "--log-format", "xml", "validate")
	_, err := runCLI(t, "", args...)
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, exitErr.Message, "invalid log-format")
}

func TestCLI_InvalidLogLevel(t *testing.T) {
	args := append(writeSite(t), "--log-level", "verbose", "validate")
	_, err := runCLI(t, "", args...)
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
}

func TestCLI_InvalidVarFlag(t *testing.T) {
	args := append(writeSite(t), "--var", "garbage", "validate")
	_, err := runCLI(t, "", args...)
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
}

func TestCLI_ValidationFailureExitsOne(t *testing.T) {
	workDir := t.TempDir()
	configPath := filepath.Join(workDir, "site.hcl")
	broken := `
resource "storage_bucket" "site" {
  arguments {
    name = var.never_declared
  }
}
`
	require.NoError(t, os.WriteFile(configPath, []byte(broken), 0o644))

	_, err := runCLI(t, "", "-c", configPath, "validate")
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, exitErr.Message, "never_declared")
}
