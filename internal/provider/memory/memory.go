// Package memory implements the provider contract against process memory.
// It backs -dry-run and the test suite: every operation is recorded, and
// computed attributes are derived deterministically from the node address.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/stratushq/stratus/internal/provider"
)

// Call records one provider invocation.
type Call struct {
	Op      string
	Kind    string
	Address string
}

// Provider is an in-memory provider.Provider. ProbeErr and FailOn allow
// tests to script failures.
type Provider struct {
	mu      sync.Mutex
	calls   []Call
	objects map[string]map[string]cty.Value

	ProbeErr error
	FailOn   map[string]error
}

// New creates an empty in-memory provider.
func New() *Provider {
	return &Provider{
		objects: make(map[string]map[string]cty.Value),
		FailOn:  make(map[string]error),
	}
}

// Probe implements provider.Provider.
func (p *Provider) Probe(ctx context.Context) error {
	p.record("probe", "", "")
	return p.ProbeErr
}

// Create implements provider.Provider.
func (p *Provider) Create(ctx context.Context, kind, address string, attrs cty.Value) (map[string]cty.Value, error) {
	p.record("create", kind, address)
	if err := p.FailOn[address]; err != nil {
		return nil, err
	}
	computed := p.computedFor(kind, address)
	p.store(address, attrs, computed)
	return computed, nil
}

// Update implements provider.Provider.
func (p *Provider) Update(ctx context.Context, kind, address string, attrs, prior cty.Value) (map[string]cty.Value, error) {
	p.record("update", kind, address)
	if err := p.FailOn[address]; err != nil {
		return nil, err
	}
	computed := p.computedFor(kind, address)
	p.store(address, attrs, computed)
	return computed, nil
}

// Delete implements provider.Provider.
func (p *Provider) Delete(ctx context.Context, kind, address string, prior cty.Value) error {
	p.record("delete", kind, address)
	if err := p.FailOn[address]; err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.objects, address)
	p.mu.Unlock()
	return nil
}

// Calls returns a copy of every recorded invocation, in order.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	calls := make([]Call, len(p.calls))
	copy(calls, p.calls)
	return calls
}

// Exists reports whether an address is currently held.
func (p *Provider) Exists(address string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.objects[address]
	return ok
}

func (p *Provider) computedFor(kind, address string) map[string]cty.Value {
	computed := make(map[string]cty.Value)
	for _, name := range provider.ComputedAttrs(kind) {
		computed[name] = cty.StringVal(fmt.Sprintf("mem-%s-%s", address, name))
	}
	return computed
}

func (p *Provider) store(address string, attrs cty.Value, computed map[string]cty.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	stored := make(map[string]cty.Value)
	if attrs.Type().IsObjectType() && !attrs.IsNull() {
		for name := range attrs.Type().AttributeTypes() {
			stored[name] = attrs.GetAttr(name)
		}
	}
	for name, val := range computed {
		stored[name] = val
	}
	p.objects[address] = stored
}

func (p *Provider) record(op, kind, address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Op: op, Kind: kind, Address: address})
}
