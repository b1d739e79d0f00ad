package aws

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/stratushq/stratus/internal/ctxlog"
)

// distributionDeleteTimeout bounds the wait for a disabled distribution to
// finish deploying before it can be deleted. CloudFront routinely takes
// several minutes here.
const distributionDeleteTimeout = 30 * time.Minute

func (p *Provider) createOriginAccessControl(ctx context.Context, attrs cty.Value) (map[string]cty.Value, error) {
	name := strAttr(attrs, "name")
	out, err := p.cloudfront.CreateOriginAccessControl(ctx, &cloudfront.CreateOriginAccessControlInput{
		OriginAccessControlConfig: originAccessControlConfig(attrs),
	})
	if err != nil {
		return nil, fmt.Errorf("CreateOriginAccessControl %s: %w", name, err)
	}
	return map[string]cty.Value{
		"id": cty.StringVal(awssdk.ToString(out.OriginAccessControl.Id)),
	}, nil
}

func (p *Provider) updateOriginAccessControl(ctx context.Context, attrs, prior cty.Value) (map[string]cty.Value, error) {
	id := strAttr(prior, "id")
	current, err := p.cloudfront.GetOriginAccessControl(ctx, &cloudfront.GetOriginAccessControlInput{
		Id: awssdk.String(id),
	})
	if err != nil {
		return nil, fmt.Errorf("GetOriginAccessControl %s: %w", id, err)
	}
	_, err = p.cloudfront.UpdateOriginAccessControl(ctx, &cloudfront.UpdateOriginAccessControlInput{
		Id:                        awssdk.String(id),
		IfMatch:                   current.ETag,
		OriginAccessControlConfig: originAccessControlConfig(attrs),
	})
	if err != nil {
		return nil, fmt.Errorf("UpdateOriginAccessControl %s: %w", id, err)
	}
	return map[string]cty.Value{"id": cty.StringVal(id)}, nil
}

func (p *Provider) deleteOriginAccessControl(ctx context.Context, prior cty.Value) error {
	id := strAttr(prior, "id")
	current, err := p.cloudfront.GetOriginAccessControl(ctx, &cloudfront.GetOriginAccessControlInput{
		Id: awssdk.String(id),
	})
	if err != nil {
		return fmt.Errorf("GetOriginAccessControl %s: %w", id, err)
	}
	_, err = p.cloudfront.DeleteOriginAccessControl(ctx, &cloudfront.DeleteOriginAccessControlInput{
		Id:      awssdk.String(id),
		IfMatch: current.ETag,
	})
	if err != nil {
		return fmt.Errorf("DeleteOriginAccessControl %s: %w", id, err)
	}
	return nil
}

func originAccessControlConfig(attrs cty.Value) *cftypes.OriginAccessControlConfig {
	cfg := &cftypes.OriginAccessControlConfig{
		Name:                          awssdk.String(strAttr(attrs, "name")),
		OriginAccessControlOriginType: cftypes.OriginAccessControlOriginTypesS3,
		SigningBehavior:               cftypes.OriginAccessControlSigningBehaviorsAlways,
		SigningProtocol:               cftypes.OriginAccessControlSigningProtocolsSigv4,
	}
	if desc := strAttr(attrs, "description"); desc != "" {
		cfg.Description = awssdk.String(desc)
	}
	return cfg
}

func (p *Provider) createDistribution(ctx context.Context, attrs cty.Value) (map[string]cty.Value, error) {
	cfg := distributionConfig(attrs, uuid.NewString())
	out, err := p.cloudfront.CreateDistribution(ctx, &cloudfront.CreateDistributionInput{
		DistributionConfig: cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("CreateDistribution: %w", err)
	}
	return map[string]cty.Value{
		"id":          cty.StringVal(awssdk.ToString(out.Distribution.Id)),
		"arn":         cty.StringVal(awssdk.ToString(out.Distribution.ARN)),
		"domain_name": cty.StringVal(awssdk.ToString(out.Distribution.DomainName)),
	}, nil
}

func (p *Provider) updateDistribution(ctx context.Context, attrs, prior cty.Value) (map[string]cty.Value, error) {
	id := strAttr(prior, "id")
	current, err := p.cloudfront.GetDistributionConfig(ctx, &cloudfront.GetDistributionConfigInput{
		Id: awssdk.String(id),
	})
	if err != nil {
		return nil, fmt.Errorf("GetDistributionConfig %s: %w", id, err)
	}

	// The caller reference is immutable; everything else is rebuilt from
	// the desired attributes.
	cfg := distributionConfig(attrs, awssdk.ToString(current.DistributionConfig.CallerReference))
	_, err = p.cloudfront.UpdateDistribution(ctx, &cloudfront.UpdateDistributionInput{
		Id:                 awssdk.String(id),
		IfMatch:            current.ETag,
		DistributionConfig: cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("UpdateDistribution %s: %w", id, err)
	}
	return map[string]cty.Value{
		"id":          cty.StringVal(id),
		"arn":         cty.StringVal(strAttr(prior, "arn")),
		"domain_name": cty.StringVal(strAttr(prior, "domain_name")),
	}, nil
}

// deleteDistribution disables the distribution, waits for the disable to
// deploy, then deletes. CloudFront refuses deletion of an enabled or
// still-deploying distribution.
func (p *Provider) deleteDistribution(ctx context.Context, prior cty.Value) error {
	logger := ctxlog.FromContext(ctx)
	id := strAttr(prior, "id")

	current, err := p.cloudfront.GetDistributionConfig(ctx, &cloudfront.GetDistributionConfigInput{
		Id: awssdk.String(id),
	})
	if err != nil {
		return fmt.Errorf("GetDistributionConfig %s: %w", id, err)
	}

	if awssdk.ToBool(current.DistributionConfig.Enabled) {
		current.DistributionConfig.Enabled = awssdk.Bool(false)
		_, err = p.cloudfront.UpdateDistribution(ctx, &cloudfront.UpdateDistributionInput{
			Id:                 awssdk.String(id),
			IfMatch:            current.ETag,
			DistributionConfig: current.DistributionConfig,
		})
		if err != nil {
			return fmt.Errorf("UpdateDistribution (disable) %s: %w", id, err)
		}
	}

	logger.Info("Waiting for distribution to finish deploying before deletion.", "id", id)
	waiter := cloudfront.NewDistributionDeployedWaiter(p.cloudfront)
	if err := waiter.Wait(ctx, &cloudfront.GetDistributionInput{Id: awssdk.String(id)}, distributionDeleteTimeout); err != nil {
		return fmt.Errorf("waiting for distribution %s to deploy: %w", id, err)
	}

	deployed, err := p.cloudfront.GetDistribution(ctx, &cloudfront.GetDistributionInput{Id: awssdk.String(id)})
	if err != nil {
		return fmt.Errorf("GetDistribution %s: %w", id, err)
	}
	_, err = p.cloudfront.DeleteDistribution(ctx, &cloudfront.DeleteDistributionInput{
		Id:      awssdk.String(id),
		IfMatch: deployed.ETag,
	})
	if err != nil {
		return fmt.Errorf("DeleteDistribution %s: %w", id, err)
	}
	return nil
}

// distributionConfig builds the full CloudFront configuration from desired
// attributes: a single OAC-bound S3 origin, HTTPS-only viewer access, and
// the two custom error mappings (403 and 404 both render the error document
// and report HTTP 404, so a missing page and a denied key look identical).
func distributionConfig(attrs cty.Value, callerReference string) *cftypes.DistributionConfig {
	originDomain := strAttr(attrs, "origin_domain")
	oacID := strAttr(attrs, "origin_access_control_id")
	rootObject := strAttr(attrs, "default_root_object")
	errorKey := strAttr(attrs, "error_document_key")
	comment := strAttr(attrs, "comment")

	const originID = "s3-origin"

	errorResponse := func(code int32) cftypes.CustomErrorResponse {
		return cftypes.CustomErrorResponse{
			ErrorCode:          awssdk.Int32(code),
			ResponseCode:       awssdk.String("404"),
			ResponsePagePath:   awssdk.String("/" + errorKey),
			ErrorCachingMinTTL: awssdk.Int64(300),
		}
	}

	return &cftypes.DistributionConfig{
		CallerReference:   awssdk.String(callerReference),
		Comment:           awssdk.String(comment),
		Enabled:           awssdk.Bool(boolAttr(attrs, "enabled", true)),
		DefaultRootObject: awssdk.String(rootObject),
		PriceClass:        cftypes.PriceClassPriceClass100,
		Origins: &cftypes.Origins{
			Quantity: awssdk.Int32(1),
			Items: []cftypes.Origin{
				{
					Id:                    awssdk.String(originID),
					DomainName:            awssdk.String(originDomain),
					OriginAccessControlId: awssdk.String(oacID),
					// OAC replaces the legacy OAI, which must be present but
					// empty.
					S3OriginConfig: &cftypes.S3OriginConfig{
						OriginAccessIdentity: awssdk.String(""),
					},
				},
			},
		},
		DefaultCacheBehavior: &cftypes.DefaultCacheBehavior{
			TargetOriginId:       awssdk.String(originID),
			ViewerProtocolPolicy: cftypes.ViewerProtocolPolicyRedirectToHttps,
			Compress:             awssdk.Bool(true),
			AllowedMethods: &cftypes.AllowedMethods{
				Quantity: awssdk.Int32(2),
				Items:    []cftypes.Method{cftypes.MethodGet, cftypes.MethodHead},
			},
			ForwardedValues: &cftypes.ForwardedValues{
				QueryString: awssdk.Bool(false),
				Cookies:     &cftypes.CookiePreference{Forward: cftypes.ItemSelectionNone},
			},
			MinTTL: awssdk.Int64(0),
		},
		CustomErrorResponses: &cftypes.CustomErrorResponses{
			Quantity: awssdk.Int32(2),
			Items:    []cftypes.CustomErrorResponse{errorResponse(403), errorResponse(404)},
		},
	}
}
