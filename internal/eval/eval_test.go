package eval

import (
	"errors"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/stratushq/stratus/internal/config"
	"github.com/stratushq/stratus/internal/graph"
)

func expr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	e, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), "parse %q: %s", src, diags.Error())
	return e
}

func variable(name string, def *string) *config.Variable {
	v := &config.Variable{Name: name, Type: cty.String}
	if def != nil {
		val := cty.StringVal(*def)
		v.Default = &val
	}
	return v
}

func strPtr(s string) *string { return &s }

func TestNewScope_DefaultAndOverride(t *testing.T) {
	model := &config.Model{
		Variables: []*config.Variable{
			variable("bucket_name", strPtr("from-default")),
			variable("region", strPtr("us-east-1")),
		},
	}
	scope, err := NewScope(model, map[string]string{"bucket_name": "from-override"})
	require.NoError(t, err)

	val, err := scope.EvalExpr(expr(t, "var.bucket_name"))
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("from-override"), val)

	val, err = scope.EvalExpr(expr(t, "var.region"))
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("us-east-1"), val)
}

func TestNewScope_UndeclaredOverride(t *testing.T) {
	model := &config.Model{}
	_, err := NewScope(model, map[string]string{"ghost": "boo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared")
}

func TestEvalExpr_MissingVariableIsLazy(t *testing.T) {
	// A variable with no default and no override only fails when referenced.
	model := &config.Model{
		Variables: []*config.Variable{
			variable("unset", nil),
			variable("set", strPtr("ok")),
		},
	}
	scope, err := NewScope(model, nil)
	require.NoError(t, err)

	_, err = scope.EvalExpr(expr(t, "var.set"))
	require.NoError(t, err)

	_, err = scope.EvalExpr(expr(t, `"${var.unset}-suffix"`))
	require.Error(t, err)
	var unresolved *UnresolvedVariableError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "unset", unresolved.Name)
}

func TestResolveNode_InjectsUnknownComputed(t *testing.T) {
	model := &config.Model{
		Variables: []*config.Variable{variable("bucket_name", strPtr("my-site"))},
	}
	scope, err := NewScope(model, nil)
	require.NoError(t, err)

	node := &graph.Node{
		Address: "storage_bucket.site",
		Kind:    config.KindStorageBucket,
		Name:    "site",
		Arguments: map[string]hcl.Expression{
			"name": expr(t, "var.bucket_name"),
		},
	}
	val, err := scope.ResolveNode(node)
	require.NoError(t, err)

	assert.Equal(t, cty.StringVal("my-site"), val.GetAttr("name"))
	// Provider-computed attributes are placeholders until an apply.
	assert.False(t, val.GetAttr("arn").IsKnown())
	assert.False(t, val.GetAttr("regional_domain_name").IsKnown())
}

func TestResolveNode_DownstreamSeesUpstream(t *testing.T) {
	model := &config.Model{
		Variables: []*config.Variable{variable("bucket_name", strPtr("my-site"))},
	}
	scope, err := NewScope(model, nil)
	require.NoError(t, err)

	bucket := &graph.Node{
		Address: "storage_bucket.site",
		Kind:    config.KindStorageBucket,
		Name:    "site",
		Arguments: map[string]hcl.Expression{
			"name": expr(t, "var.bucket_name"),
		},
	}
	_, err = scope.ResolveNode(bucket)
	require.NoError(t, err)

	policy := &graph.Node{
		Address: "bucket_policy.public_read",
		Kind:    config.KindBucketPolicy,
		Name:    "public_read",
		Arguments: map[string]hcl.Expression{
			"bucket": expr(t, "storage_bucket.site.name"),
		},
	}
	val, err := scope.ResolveNode(policy)
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("my-site"), val.GetAttr("bucket"))
}

func TestResolveNode_ConcreteAfterSetNodeAttrs(t *testing.T) {
	scope, err := NewScope(&config.Model{}, nil)
	require.NoError(t, err)

	// Simulate an apply filling in the computed attribute.
	scope.SetNodeAttrs("storage_bucket.site", config.KindStorageBucket, map[string]cty.Value{
		"name": cty.StringVal("my-site"),
		"arn":  cty.StringVal("arn:aws:s3:::my-site"),
	})

	val, err := scope.EvalExpr(expr(t, "storage_bucket.site.arn"))
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("arn:aws:s3:::my-site"), val)
}

func TestResolveNode_LiteralAttributes(t *testing.T) {
	scope, err := NewScope(&config.Model{}, nil)
	require.NoError(t, err)

	node := &graph.Node{
		Address: "stored_object.assets/index.html",
		Kind:    config.KindStoredObject,
		Name:    "assets/index.html",
		Literal: map[string]cty.Value{
			"key":         cty.StringVal("index.html"),
			"fingerprint": cty.StringVal("abc123"),
		},
	}
	val, err := scope.ResolveNode(node)
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("index.html"), val.GetAttr("key"))
	assert.Equal(t, cty.StringVal("abc123"), val.GetAttr("fingerprint"))
	assert.False(t, val.GetAttr("etag").IsKnown())
}

func TestEvalExpr_StoredObjectIndexSyntax(t *testing.T) {
	scope, err := NewScope(&config.Model{}, nil)
	require.NoError(t, err)

	scope.SetNodeAttrs("stored_object.assets/css/site.css", config.KindStoredObject, map[string]cty.Value{
		"key":  cty.StringVal("css/site.css"),
		"etag": cty.StringVal("abc123"),
	})

	val, err := scope.EvalExpr(expr(t, `stored_object.assets["css/site.css"].etag`))
	require.NoError(t, err)
	assert.Equal(t, cty.StringVal("abc123"), val)
}

func TestNodeAttrs(t *testing.T) {
	scope, err := NewScope(&config.Model{}, nil)
	require.NoError(t, err)

	_, ok := scope.NodeAttrs("storage_bucket.site")
	assert.False(t, ok)

	scope.SetNodeAttrs("storage_bucket.site", config.KindStorageBucket, map[string]cty.Value{
		"name": cty.StringVal("x"),
	})
	attrs, ok := scope.NodeAttrs("storage_bucket.site")
	require.True(t, ok)
	assert.Equal(t, cty.StringVal("x"), attrs["name"])
}
