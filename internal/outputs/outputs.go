// Package outputs projects the configured output bindings from final node
// attributes, once every referenced node has reached a terminal resolved
// state.
package outputs

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/stratushq/stratus/internal/config"
	"github.com/stratushq/stratus/internal/eval"
)

// UnresolvedOutputError reports an output whose expression references a node
// that never reached a terminal resolved state.
type UnresolvedOutputError struct {
	Name   string
	Reason string
}

func (e *UnresolvedOutputError) Error() string {
	return fmt.Sprintf("output %q cannot be resolved: %s", e.Name, e.Reason)
}

// Binding is one projected output value.
type Binding struct {
	Name        string
	Description string
	Value       cty.Value
}

// Project evaluates every output binding against the scope's final attribute
// values, in declaration order.
func Project(model *config.Model, scope *eval.Scope) ([]Binding, error) {
	bindings := make([]Binding, 0, len(model.Outputs))
	for _, o := range model.Outputs {
		val, err := scope.EvalExpr(o.Value)
		if err != nil {
			return nil, &UnresolvedOutputError{Name: o.Name, Reason: err.Error()}
		}
		if !val.IsWhollyKnown() {
			return nil, &UnresolvedOutputError{Name: o.Name, Reason: "a referenced node was never applied"}
		}
		bindings = append(bindings, Binding{
			Name:        o.Name,
			Description: o.Description,
			Value:       val,
		})
	}
	return bindings, nil
}

// FormatValue renders a binding value for terminal display. Strings print
// bare; anything structured prints as JSON.
func FormatValue(v cty.Value) string {
	if v.Type() == cty.String && !v.IsNull() {
		return v.AsString()
	}
	data, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return v.GoString()
	}
	return string(data)
}
