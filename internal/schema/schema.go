// Package schema holds the HCL-facing block structures a site definition
// file decodes into. The hcl loader translates these into the agnostic
// config model.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// Arguments represents the content of the 'arguments' block within a
// resource. Attribute values stay as raw HCL so references resolve later.
type Arguments struct {
	Body hcl.Body `hcl:",remain"`
}

// Variable represents a `variable` block: a named, typed, defaulted input.
type Variable struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type"`
	Default     hcl.Expression `hcl:"default,optional"`
	Description string         `hcl:"description,optional"`
}

// Resource represents a `resource "<kind>" "<name>"` block from a site file.
type Resource struct {
	Kind      string     `hcl:"kind,label"`
	Name      string     `hcl:"name,label"`
	Arguments *Arguments `hcl:"arguments,block"`
	DependsOn []string   `hcl:"depends_on,optional"`
}

// Content represents a `content "<name>"` block. One stored_object node is
// synthesized per file found under source_dir, plus the inline error
// document.
type Content struct {
	Name          string         `hcl:"name,label"`
	Bucket        hcl.Expression `hcl:"bucket"`
	SourceDir     hcl.Expression `hcl:"source_dir"`
	Recursive     bool           `hcl:"recursive,optional"`
	KeyPrefix     string         `hcl:"key_prefix,optional"`
	EntryDocument string         `hcl:"entry_document,optional"`
	ErrorDocument string         `hcl:"error_document,optional"`
}

// Output represents an `output` block evaluated after the graph resolves.
type Output struct {
	Name        string         `hcl:"name,label"`
	Value       hcl.Expression `hcl:"value"`
	Description string         `hcl:"description,optional"`
}

// SiteConfig is the top-level structure of a site definition file.
type SiteConfig struct {
	Variables []*Variable `hcl:"variable,block"`
	Resources []*Resource `hcl:"resource,block"`
	Contents  []*Content  `hcl:"content,block"`
	Outputs   []*Output   `hcl:"output,block"`
	Body      hcl.Body    `hcl:",remain"`
}
