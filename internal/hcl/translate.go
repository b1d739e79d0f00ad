package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/stratushq/stratus/internal/config"
	"github.com/stratushq/stratus/internal/schema"
)

// translate converts decoded HCL blocks into the agnostic model, appending to
// any declarations already merged from earlier files.
func (l *Loader) translate(site *schema.SiteConfig, model *config.Model) error {
	for _, v := range site.Variables {
		variable, err := translateVariable(v)
		if err != nil {
			return err
		}
		if model.Variable(variable.Name) != nil {
			return fmt.Errorf("variable %q declared more than once", variable.Name)
		}
		model.Variables = append(model.Variables, variable)
	}

	for _, r := range site.Resources {
		if !config.ValidKind(r.Kind) {
			return fmt.Errorf("resource %s.%s: unknown resource kind %q", r.Kind, r.Name, r.Kind)
		}
		var body hcl.Body
		if r.Arguments != nil {
			body = r.Arguments.Body
		}
		arguments, err := extractBodyAttributes(body)
		if err != nil {
			return fmt.Errorf("resource %s.%s: %w", r.Kind, r.Name, err)
		}
		model.Resources = append(model.Resources, &config.Resource{
			Kind:      r.Kind,
			Name:      r.Name,
			Arguments: arguments,
			DependsOn: r.DependsOn,
			DeclIndex: len(model.Resources),
		})
	}

	for _, c := range site.Contents {
		content := &config.Content{
			Name:          c.Name,
			Bucket:        c.Bucket,
			SourceDir:     c.SourceDir,
			Recursive:     c.Recursive,
			KeyPrefix:     c.KeyPrefix,
			EntryDocument: c.EntryDocument,
			ErrorDocument: c.ErrorDocument,
			DeclIndex:     len(model.Contents),
		}
		if content.EntryDocument == "" {
			content.EntryDocument = "index.html"
		}
		if content.ErrorDocument == "" {
			content.ErrorDocument = "error.html"
		}
		model.Contents = append(model.Contents, content)
	}

	for _, o := range site.Outputs {
		model.Outputs = append(model.Outputs, &config.Output{
			Name:        o.Name,
			Description: o.Description,
			Value:       o.Value,
			DeclIndex:   len(model.Outputs),
		})
	}

	return nil
}

func translateVariable(v *schema.Variable) (*config.Variable, error) {
	ty, diags := typeexpr.TypeConstraint(v.Type)
	if diags.HasErrors() {
		return nil, fmt.Errorf("variable %q: invalid type: %s", v.Name, diags.Error())
	}

	variable := &config.Variable{
		Name:        v.Name,
		Description: v.Description,
		Type:        ty,
	}

	if v.Default != nil {
		val, diags := v.Default.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("variable %q: invalid default: %s", v.Name, diags.Error())
		}
		// A null default means "no default", matching an omitted attribute.
		if !val.IsNull() {
			converted, err := convert.Convert(val, ty)
			if err != nil {
				return nil, fmt.Errorf("variable %q: default does not match type: %w", v.Name, err)
			}
			variable.Default = &converted
		}
	}

	return variable, nil
}
