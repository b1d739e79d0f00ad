package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/zclconf/go-cty/cty"

	"github.com/stratushq/stratus/internal/ctxlog"
)

func (p *Provider) createBucket(ctx context.Context, attrs cty.Value) (map[string]cty.Value, error) {
	name := strAttr(attrs, "name")
	input := &s3.CreateBucketInput{Bucket: awssdk.String(name)}
	// us-east-1 is the one region that must not appear as a location
	// constraint.
	if p.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(p.region),
		}
	}
	if _, err := p.s3.CreateBucket(ctx, input); err != nil {
		return nil, fmt.Errorf("CreateBucket %s: %w", name, err)
	}
	return p.bucketComputed(name), nil
}

func (p *Provider) bucketComputed(name string) map[string]cty.Value {
	return map[string]cty.Value{
		"arn":                  cty.StringVal("arn:aws:s3:::" + name),
		"regional_domain_name": cty.StringVal(fmt.Sprintf("%s.s3.%s.amazonaws.com", name, p.region)),
	}
}

func (p *Provider) deleteBucket(ctx context.Context, prior cty.Value) error {
	name := strAttr(prior, "name")
	if _, err := p.s3.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: awssdk.String(name)}); err != nil {
		return fmt.Errorf("DeleteBucket %s: %w", name, err)
	}
	return nil
}

// publicReadPolicy is the provider-facing contract for the bucket policy:
// public read of every object under the bucket's namespace.
func publicReadPolicy(bucket string) (string, error) {
	doc := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Sid":       "PublicReadGetObject",
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  "arn:aws:s3:::" + bucket + "/*",
			},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (p *Provider) putBucketPolicy(ctx context.Context, attrs cty.Value) (map[string]cty.Value, error) {
	bucket := strAttr(attrs, "bucket")
	policy, err := publicReadPolicy(bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to render bucket policy: %w", err)
	}
	_, err = p.s3.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: awssdk.String(bucket),
		Policy: awssdk.String(policy),
	})
	if err != nil {
		return nil, fmt.Errorf("PutBucketPolicy %s: %w", bucket, err)
	}
	return nil, nil
}

func (p *Provider) deleteBucketPolicy(ctx context.Context, prior cty.Value) error {
	bucket := strAttr(prior, "bucket")
	if _, err := p.s3.DeleteBucketPolicy(ctx, &s3.DeleteBucketPolicyInput{Bucket: awssdk.String(bucket)}); err != nil {
		return fmt.Errorf("DeleteBucketPolicy %s: %w", bucket, err)
	}
	return nil
}

func (p *Provider) putPublicAccessBlock(ctx context.Context, attrs cty.Value) (map[string]cty.Value, error) {
	bucket := strAttr(attrs, "bucket")
	_, err := p.s3.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: awssdk.String(bucket),
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       awssdk.Bool(boolAttr(attrs, "block_public_acls", true)),
			IgnorePublicAcls:      awssdk.Bool(boolAttr(attrs, "ignore_public_acls", true)),
			BlockPublicPolicy:     awssdk.Bool(boolAttr(attrs, "block_public_policy", false)),
			RestrictPublicBuckets: awssdk.Bool(boolAttr(attrs, "restrict_public_buckets", false)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("PutPublicAccessBlock %s: %w", bucket, err)
	}
	return nil, nil
}

func (p *Provider) deletePublicAccessBlock(ctx context.Context, prior cty.Value) error {
	bucket := strAttr(prior, "bucket")
	if _, err := p.s3.DeletePublicAccessBlock(ctx, &s3.DeletePublicAccessBlockInput{Bucket: awssdk.String(bucket)}); err != nil {
		return fmt.Errorf("DeletePublicAccessBlock %s: %w", bucket, err)
	}
	return nil
}

func (p *Provider) putBucketVersioning(ctx context.Context, attrs cty.Value) (map[string]cty.Value, error) {
	bucket := strAttr(attrs, "bucket")
	status := strAttr(attrs, "status")
	if status == "" {
		status = "Enabled"
	}
	_, err := p.s3.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: awssdk.String(bucket),
		VersioningConfiguration: &s3types.VersioningConfiguration{
			Status: s3types.BucketVersioningStatus(status),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("PutBucketVersioning %s: %w", bucket, err)
	}
	return nil, nil
}

// suspendBucketVersioning is the closest thing S3 offers to deleting a
// versioning configuration.
func (p *Provider) suspendBucketVersioning(ctx context.Context, prior cty.Value) error {
	bucket := strAttr(prior, "bucket")
	_, err := p.s3.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: awssdk.String(bucket),
		VersioningConfiguration: &s3types.VersioningConfiguration{
			Status: s3types.BucketVersioningStatusSuspended,
		},
	})
	if err != nil {
		return fmt.Errorf("PutBucketVersioning (suspend) %s: %w", bucket, err)
	}
	return nil
}

func (p *Provider) putBucketWebsite(ctx context.Context, attrs cty.Value) (map[string]cty.Value, error) {
	bucket := strAttr(attrs, "bucket")
	index := strAttr(attrs, "index_document")
	errDoc := strAttr(attrs, "error_document")
	input := &s3.PutBucketWebsiteInput{
		Bucket: awssdk.String(bucket),
		WebsiteConfiguration: &s3types.WebsiteConfiguration{
			IndexDocument: &s3types.IndexDocument{Suffix: awssdk.String(index)},
		},
	}
	if errDoc != "" {
		input.WebsiteConfiguration.ErrorDocument = &s3types.ErrorDocument{Key: awssdk.String(errDoc)}
	}
	if _, err := p.s3.PutBucketWebsite(ctx, input); err != nil {
		return nil, fmt.Errorf("PutBucketWebsite %s: %w", bucket, err)
	}
	return map[string]cty.Value{
		"website_endpoint": cty.StringVal(fmt.Sprintf("%s.s3-website-%s.amazonaws.com", bucket, p.region)),
	}, nil
}

func (p *Provider) deleteBucketWebsite(ctx context.Context, prior cty.Value) error {
	bucket := strAttr(prior, "bucket")
	if _, err := p.s3.DeleteBucketWebsite(ctx, &s3.DeleteBucketWebsiteInput{Bucket: awssdk.String(bucket)}); err != nil {
		return fmt.Errorf("DeleteBucketWebsite %s: %w", bucket, err)
	}
	return nil
}

func (p *Provider) putObject(ctx context.Context, attrs cty.Value) (map[string]cty.Value, error) {
	bucket := strAttr(attrs, "bucket")
	key := strAttr(attrs, "key")
	source := strAttr(attrs, "source")
	contentType := strAttr(attrs, "content_type")
	fingerprint := strAttr(attrs, "fingerprint")

	input := &s3.PutObjectInput{
		Bucket:      awssdk.String(bucket),
		Key:         awssdk.String(key),
		ContentType: awssdk.String(contentType),
		Metadata:    map[string]string{"sha256": fingerprint},
	}

	if source != "" {
		file, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", source, err)
		}
		defer file.Close()
		input.Body = file
	} else {
		input.Body = strings.NewReader(strAttr(attrs, "body"))
	}

	ctxlog.FromContext(ctx).Debug("Uploading object.",
		"bucket", bucket, "key", key, "content_type", contentType)

	out, err := p.s3.PutObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("PutObject s3://%s/%s: %w", bucket, key, err)
	}
	return map[string]cty.Value{
		"etag": cty.StringVal(strings.Trim(awssdk.ToString(out.ETag), `"`)),
	}, nil
}

func (p *Provider) deleteObject(ctx context.Context, prior cty.Value) error {
	bucket := strAttr(prior, "bucket")
	key := strAttr(prior, "key")
	_, err := p.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: awssdk.String(bucket),
		Key:    awssdk.String(key),
	})
	if err != nil {
		return fmt.Errorf("DeleteObject s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
