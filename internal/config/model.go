package config

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Resource kinds understood by the graph builder and the providers.
const (
	KindStorageBucket       = "storage_bucket"
	KindBucketPolicy        = "bucket_policy"
	KindPublicAccessBlock   = "public_access_block"
	KindVersioningConfig    = "versioning_config"
	KindWebsiteConfig       = "website_config"
	KindOriginAccessControl = "origin_access_control"
	KindCDNDistribution     = "cdn_distribution"
	KindStoredObject        = "stored_object"
)

// Kinds lists every valid resource kind in a stable order.
var Kinds = []string{
	KindStorageBucket,
	KindBucketPolicy,
	KindPublicAccessBlock,
	KindVersioningConfig,
	KindWebsiteConfig,
	KindOriginAccessControl,
	KindCDNDistribution,
	KindStoredObject,
}

// ValidKind reports whether k names a known resource kind.
func ValidKind(k string) bool {
	for _, kind := range Kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Variable is a named, typed, defaulted input consumed by resource
// declarations. It is immutable once resolved for a given invocation.
type Variable struct {
	Name        string
	Description string
	Type        cty.Type
	Default     *cty.Value
	DeclRange   hcl.Range
}

// Resource is one declared unit of desired infrastructure state. Argument
// values stay as unevaluated expressions until the resolver walks the graph.
type Resource struct {
	Kind      string
	Name      string
	Arguments map[string]hcl.Expression
	DependsOn []string
	DeclRange hcl.Range
	DeclIndex int
}

// Address returns the canonical "<kind>.<name>" node address.
func (r *Resource) Address() string {
	return r.Kind + "." + r.Name
}

// Content declares a directory of site files from which one stored_object
// node per file is synthesized. Bucket and SourceDir are expressions so they
// may reference variables or other nodes.
type Content struct {
	Name          string
	Bucket        hcl.Expression
	SourceDir     hcl.Expression
	Recursive     bool
	KeyPrefix     string
	EntryDocument string
	ErrorDocument string
	DeclRange     hcl.Range
	DeclIndex     int
}

// Output is a named binding evaluated only after the graph is fully resolved.
type Output struct {
	Name        string
	Description string
	Value       hcl.Expression
	DeclRange   hcl.Range
	DeclIndex   int
}

// Model is the format-agnostic configuration consumed by the rest of the
// application. The HCL loader is its only producer today.
type Model struct {
	Variables []*Variable
	Resources []*Resource
	Contents  []*Content
	Outputs   []*Output
}

// Variable returns the declared variable with the given name, or nil.
func (m *Model) Variable(name string) *Variable {
	for _, v := range m.Variables {
		if v.Name == name {
			return v
		}
	}
	return nil
}
