// Package aws reconciles resource nodes against AWS: S3 for the bucket, its
// configuration and the uploaded objects, CloudFront for the distribution
// and its origin access control, STS for the credential pre-flight probe.
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/zclconf/go-cty/cty"

	"github.com/stratushq/stratus/internal/config"
	"github.com/stratushq/stratus/internal/ctxlog"
)

// Provider implements provider.Provider on top of the AWS SDK.
type Provider struct {
	region     string
	accountID  string
	s3         *s3.Client
	cloudfront *cloudfront.Client
	sts        *sts.Client
}

// New loads the ambient AWS configuration (env, shared config, instance
// role) and builds the service clients. A region flag overrides whatever
// the ambient configuration resolves.
func New(ctx context.Context, region string) (*Provider, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	return &Provider{
		region:     cfg.Region,
		s3:         s3.NewFromConfig(cfg),
		cloudfront: cloudfront.NewFromConfig(cfg),
		sts:        sts.NewFromConfig(cfg),
	}, nil
}

// Probe verifies the ambient credentials actually resolve to an identity.
func (p *Provider) Probe(ctx context.Context) error {
	out, err := p.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("no usable AWS credentials: %w", err)
	}
	p.accountID = awssdk.ToString(out.Account)
	ctxlog.FromContext(ctx).Debug("Credential probe succeeded.",
		"account", p.accountID, "arn", awssdk.ToString(out.Arn), "region", p.region)
	return nil
}

// Create implements provider.Provider.
func (p *Provider) Create(ctx context.Context, kind, address string, attrs cty.Value) (map[string]cty.Value, error) {
	switch kind {
	case config.KindStorageBucket:
		return p.createBucket(ctx, attrs)
	case config.KindBucketPolicy:
		return p.putBucketPolicy(ctx, attrs)
	case config.KindPublicAccessBlock:
		return p.putPublicAccessBlock(ctx, attrs)
	case config.KindVersioningConfig:
		return p.putBucketVersioning(ctx, attrs)
	case config.KindWebsiteConfig:
		return p.putBucketWebsite(ctx, attrs)
	case config.KindOriginAccessControl:
		return p.createOriginAccessControl(ctx, attrs)
	case config.KindCDNDistribution:
		return p.createDistribution(ctx, attrs)
	case config.KindStoredObject:
		return p.putObject(ctx, attrs)
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
}

// Update implements provider.Provider. The bucket-configuration kinds are
// plain upserts in the S3 API, so they share their create paths.
func (p *Provider) Update(ctx context.Context, kind, address string, attrs, prior cty.Value) (map[string]cty.Value, error) {
	switch kind {
	case config.KindStorageBucket:
		if strAttr(attrs, "name") != strAttr(prior, "name") {
			return nil, fmt.Errorf("a bucket cannot be renamed in place; declare a new storage_bucket instead")
		}
		return p.bucketComputed(strAttr(attrs, "name")), nil
	case config.KindBucketPolicy:
		return p.putBucketPolicy(ctx, attrs)
	case config.KindPublicAccessBlock:
		return p.putPublicAccessBlock(ctx, attrs)
	case config.KindVersioningConfig:
		return p.putBucketVersioning(ctx, attrs)
	case config.KindWebsiteConfig:
		return p.putBucketWebsite(ctx, attrs)
	case config.KindOriginAccessControl:
		return p.updateOriginAccessControl(ctx, attrs, prior)
	case config.KindCDNDistribution:
		return p.updateDistribution(ctx, attrs, prior)
	case config.KindStoredObject:
		return p.putObject(ctx, attrs)
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
}

// Delete implements provider.Provider.
func (p *Provider) Delete(ctx context.Context, kind, address string, prior cty.Value) error {
	switch kind {
	case config.KindStorageBucket:
		return p.deleteBucket(ctx, prior)
	case config.KindBucketPolicy:
		return p.deleteBucketPolicy(ctx, prior)
	case config.KindPublicAccessBlock:
		return p.deletePublicAccessBlock(ctx, prior)
	case config.KindVersioningConfig:
		return p.suspendBucketVersioning(ctx, prior)
	case config.KindWebsiteConfig:
		return p.deleteBucketWebsite(ctx, prior)
	case config.KindOriginAccessControl:
		return p.deleteOriginAccessControl(ctx, prior)
	case config.KindCDNDistribution:
		return p.deleteDistribution(ctx, prior)
	case config.KindStoredObject:
		return p.deleteObject(ctx, prior)
	default:
		return fmt.Errorf("unknown resource kind %q", kind)
	}
}

// strAttr reads a string attribute, returning "" when it is absent, null or
// not yet known.
func strAttr(v cty.Value, name string) string {
	if v == cty.NilVal || v.IsNull() || !v.Type().IsObjectType() || !v.Type().HasAttribute(name) {
		return ""
	}
	attr := v.GetAttr(name)
	if !attr.IsKnown() || attr.IsNull() || attr.Type() != cty.String {
		return ""
	}
	return attr.AsString()
}

// boolAttr reads a bool attribute with a default for absent values.
func boolAttr(v cty.Value, name string, def bool) bool {
	if v == cty.NilVal || v.IsNull() || !v.Type().IsObjectType() || !v.Type().HasAttribute(name) {
		return def
	}
	attr := v.GetAttr(name)
	if !attr.IsKnown() || attr.IsNull() || attr.Type() != cty.Bool {
		return def
	}
	return attr.True()
}
