// Package provider defines the reconciliation contract the deployment driver
// applies plans through, plus the per-kind schema of provider-assigned
// attributes.
package provider

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/stratushq/stratus/internal/config"
)

// Provider reconciles individual resource nodes against a backing service.
// Create and Update return the provider-assigned (computed) attributes for
// the node, which the resolver feeds to downstream references and outputs.
type Provider interface {
	// Probe verifies that usable credentials are present. It is the
	// deployment driver's first pre-flight check and must not mutate
	// anything.
	Probe(ctx context.Context) error

	Create(ctx context.Context, kind, address string, attrs cty.Value) (map[string]cty.Value, error)
	Update(ctx context.Context, kind, address string, attrs, prior cty.Value) (map[string]cty.Value, error)
	Delete(ctx context.Context, kind, address string, prior cty.Value) error
}

// computedAttrs lists the attributes each kind only gains once the provider
// has acted. They evaluate as unknown at plan time.
var computedAttrs = map[string][]string{
	config.KindStorageBucket:       {"arn", "regional_domain_name"},
	config.KindWebsiteConfig:       {"website_endpoint"},
	config.KindOriginAccessControl: {"id"},
	config.KindCDNDistribution:     {"id", "arn", "domain_name"},
	config.KindStoredObject:        {"etag"},
}

// ComputedAttrs returns the provider-assigned attribute names for a kind.
func ComputedAttrs(kind string) []string {
	return computedAttrs[kind]
}
