package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// writeConfig is a helper that writes one .hcl file under dir.
func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const sampleSite = `
variable "bucket_name" {
  type        = string
  default     = "my-site"
  description = "Bucket name."
}

resource "storage_bucket" "site" {
  arguments {
    name = var.bucket_name
  }
}

resource "bucket_policy" "public_read" {
  arguments {
    bucket = storage_bucket.site.name
  }
  depends_on = ["storage_bucket.site"]
}

content "assets" {
  bucket     = storage_bucket.site.name
  source_dir = "./public"
}

output "bucket_name" {
  value       = storage_bucket.site.name
  description = "Name of the site bucket."
}
`

func TestLoad_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "site.hcl", sampleSite)

	model, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, model.Variables, 1)
	v := model.Variables[0]
	assert.Equal(t, "bucket_name", v.Name)
	assert.Equal(t, cty.String, v.Type)
	require.NotNil(t, v.Default)
	assert.Equal(t, cty.StringVal("my-site"), *v.Default)

	require.Len(t, model.Resources, 2)
	bucket := model.Resources[0]
	assert.Equal(t, "storage_bucket", bucket.Kind)
	assert.Equal(t, "site", bucket.Name)
	assert.Equal(t, "storage_bucket.site", bucket.Address())
	assert.Contains(t, bucket.Arguments, "name")

	policy := model.Resources[1]
	assert.Equal(t, []string{"storage_bucket.site"}, policy.DependsOn)

	require.Len(t, model.Contents, 1)
	c := model.Contents[0]
	assert.Equal(t, "assets", c.Name)
	// Entry and error documents default when omitted.
	assert.Equal(t, "index.html", c.EntryDocument)
	assert.Equal(t, "error.html", c.ErrorDocument)

	require.Len(t, model.Outputs, 1)
	assert.Equal(t, "bucket_name", model.Outputs[0].Name)
	assert.Equal(t, "Name of the site bucket.", model.Outputs[0].Description)
}

func TestLoad_DirectoryMergesLexicographically(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "b_resources.hcl", `
resource "storage_bucket" "site" {
  arguments {
    name = var.bucket_name
  }
}
`)
	writeConfig(t, dir, "a_variables.hcl", `
variable "bucket_name" {
  type    = string
  default = "merged"
}
`)
	writeConfig(t, dir, "notes.txt", "ignored")

	model, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, model.Variables, 1)
	assert.Len(t, model.Resources, 1)
}

func TestLoad_UnknownKindRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "site.hcl", `
resource "database_cluster" "main" {
  arguments {
    name = "nope"
  }
}
`)
	_, err := NewLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown resource kind")
	assert.Contains(t, err.Error(), "database_cluster")
}

func TestLoad_DuplicateVariableRejected(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.hcl", `
variable "bucket_name" {
  type    = string
  default = "one"
}
`)
	writeConfig(t, dir, "b.hcl", `
variable "bucket_name" {
  type    = string
  default = "two"
}
`)
	_, err := NewLoader().Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared more than once")
}

func TestLoad_InvalidSyntax(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "broken.hcl", `resource "storage_bucket" {`)

	_, err := NewLoader().Load(context.Background(), path)
	require.Error(t, err)
}

func TestLoad_NoFilesFound(t *testing.T) {
	dir := t.TempDir()
	_, err := NewLoader().Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .hcl configuration files")
}

func TestLoad_NullDefaultMeansNoDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "site.hcl", `
variable "bucket_name" {
  type    = string
  default = null
}
`)
	model, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, model.Variables, 1)
	assert.Nil(t, model.Variables[0].Default)
}

func TestLoad_DefaultTypeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "site.hcl", `
variable "count" {
  type    = number
  default = ["not", "a", "number"]
}
`)
	_, err := NewLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match type")
}
