package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/stratushq/stratus/internal/config"
	"github.com/stratushq/stratus/internal/content"
	"github.com/stratushq/stratus/internal/ctxlog"
	"github.com/stratushq/stratus/internal/eval"
	"github.com/stratushq/stratus/internal/graph"
	"github.com/stratushq/stratus/internal/outputs"
	"github.com/stratushq/stratus/internal/plan"
	"github.com/stratushq/stratus/internal/state"
)

// site bundles everything derived from the configuration for one run.
type site struct {
	model *config.Model
	scope *eval.Scope
	graph *graph.Graph
}

// Deploy runs the full sequence: credential pre-flight, load, validate,
// plan, confirm, apply, report. Any failure halts the sequence; there are
// no retries.
func (a *App) Deploy(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if err := a.checkCredentials(ctx); err != nil {
		return err
	}
	s, err := a.prepare(ctx)
	if err != nil {
		return err
	}

	snap, err := a.store.Read()
	if err != nil {
		return err
	}

	a.logger.Info("📋 Computing plan...")
	p, err := plan.Compute(ctx, s.graph, s.scope, snap)
	if err != nil {
		return err
	}
	if err := plan.WriteFile(a.cfg.PlanPath, p); err != nil {
		return err
	}
	a.printPlan(p)

	if !p.HasChanges() {
		a.logger.Info("✅ No changes. Infrastructure matches the configuration.")
		if err := plan.Discard(a.cfg.PlanPath); err != nil {
			return err
		}
		seedScope(s.scope, snap)
		return a.report(s)
	}

	if !a.cfg.AutoApprove {
		confirmed, err := a.confirm("Apply this plan?")
		if err != nil {
			return err
		}
		if !confirmed {
			if err := plan.Discard(a.cfg.PlanPath); err != nil {
				return err
			}
			a.logger.Info("🚫 Apply cancelled; pending plan discarded.")
			return nil
		}
	}

	if err := a.applyPlan(ctx, s, p, snap); err != nil {
		return err
	}
	if err := plan.Discard(a.cfg.PlanPath); err != nil {
		return err
	}
	return a.report(s)
}

// Plan computes and stores a plan artifact without applying it.
func (a *App) Plan(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if err := a.checkCredentials(ctx); err != nil {
		return err
	}
	s, err := a.prepare(ctx)
	if err != nil {
		return err
	}
	snap, err := a.store.Read()
	if err != nil {
		return err
	}

	a.logger.Info("📋 Computing plan...")
	p, err := plan.Compute(ctx, s.graph, s.scope, snap)
	if err != nil {
		return err
	}
	if err := plan.WriteFile(a.cfg.PlanPath, p); err != nil {
		return err
	}
	a.printPlan(p)
	fmt.Fprintf(a.outW, "\nPlan written to %s. Run `stratus apply` to execute it.\n", a.cfg.PlanPath)
	return nil
}

// Apply executes a previously computed plan artifact. It never re-plans: a
// plan computed against a different state serial is refused with the remedy
// of computing a fresh one.
func (a *App) Apply(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if err := a.checkCredentials(ctx); err != nil {
		return err
	}
	s, err := a.prepare(ctx)
	if err != nil {
		return err
	}
	p, err := plan.ReadFile(a.cfg.PlanPath)
	if err != nil {
		return err
	}
	snap, err := a.store.Read()
	if err != nil {
		return err
	}

	a.printPlan(p)
	if !a.cfg.AutoApprove {
		confirmed, err := a.confirm("Apply this plan?")
		if err != nil {
			return err
		}
		if !confirmed {
			if err := plan.Discard(a.cfg.PlanPath); err != nil {
				return err
			}
			a.logger.Info("🚫 Apply cancelled; pending plan discarded.")
			return nil
		}
	}

	if err := a.applyPlan(ctx, s, p, snap); err != nil {
		return err
	}
	if err := plan.Discard(a.cfg.PlanPath); err != nil {
		return err
	}
	return a.report(s)
}

// Destroy removes everything recorded in state, dependents first. It needs
// no configuration beyond the state file itself.
func (a *App) Destroy(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if err := a.checkCredentials(ctx); err != nil {
		return err
	}
	snap, err := a.store.Read()
	if err != nil {
		return err
	}
	if len(snap.Resources) == 0 {
		a.logger.Info("✅ Nothing to destroy; state is empty.")
		return nil
	}

	p := plan.ComputeDestroy(ctx, snap)
	a.printPlan(p)

	if !a.cfg.AutoApprove {
		confirmed, err := a.confirm("Destroy all of the above?")
		if err != nil {
			return err
		}
		if !confirmed {
			a.logger.Info("🚫 Destroy cancelled.")
			return nil
		}
	}

	s := &site{graph: graph.New()}
	if err := a.applyPlan(ctx, s, p, snap); err != nil {
		return err
	}
	a.logger.Info("🏁 Destroy complete.")
	return nil
}

// Validate loads the configuration and validates the resource graph without
// touching state or the provider.
func (a *App) Validate(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	if _, err := a.prepare(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.outW, "Configuration is valid.")
	return nil
}

// Output re-projects the output bindings from the persisted state.
func (a *App) Output(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	model, err := a.loader.Load(ctx, a.cfg.ConfigPath)
	if err != nil {
		return err
	}
	scope, err := eval.NewScope(model, a.cfg.Vars)
	if err != nil {
		return err
	}
	snap, err := a.store.Read()
	if err != nil {
		return err
	}
	seedScope(scope, snap)

	bindings, err := outputs.Project(model, scope)
	if err != nil {
		return err
	}
	a.printOutputs(bindings)
	return nil
}

// checkCredentials is the first pre-flight guard. A failed probe aborts the
// whole run before any plan is computed.
func (a *App) checkCredentials(ctx context.Context) error {
	a.logger.Info("🔐 Checking cloud credentials...")
	if err := a.provider.Probe(ctx); err != nil {
		return &PreflightError{Check: "credentials", Err: err}
	}
	return nil
}

// prepare loads the configuration, resolves the variable store, runs the
// content-root pre-flight, enumerates stored objects and builds the
// validated graph.
func (a *App) prepare(ctx context.Context) (*site, error) {
	a.logger.Info("🧩 Loading configuration...", "path", a.cfg.ConfigPath)
	model, err := a.loader.Load(ctx, a.cfg.ConfigPath)
	if err != nil {
		return nil, err
	}

	scope, err := eval.NewScope(model, a.cfg.Vars)
	if err != nil {
		return nil, err
	}

	objects := make(map[string][]*content.Object)
	for _, c := range model.Contents {
		dirVal, err := scope.EvalExpr(c.SourceDir)
		if err != nil {
			return nil, fmt.Errorf("content %q: source_dir: %w", c.Name, err)
		}
		if dirVal.Type() != cty.String || dirVal.IsNull() {
			return nil, fmt.Errorf("content %q: source_dir must be a string", c.Name)
		}
		dir := dirVal.AsString()

		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return nil, &PreflightError{
				Check: "content root",
				Err:   fmt.Errorf("content directory %s for %q is missing or not a directory", dir, c.Name),
			}
		}

		objs, err := content.Enumerate(ctx, dir, c.Recursive, c.KeyPrefix, c.EntryDocument, c.ErrorDocument)
		if err != nil {
			return nil, err
		}
		objects[c.Name] = objs
	}

	a.logger.Info("🔎 Validating resource graph...")
	g, err := graph.Build(ctx, model, objects)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Graph built.", "node_count", g.Len())

	return &site{model: model, scope: scope, graph: g}, nil
}

// applyPlan locks state, executes the plan and persists the snapshot,
// including the partial snapshot when the apply fails midway.
func (a *App) applyPlan(ctx context.Context, s *site, p *plan.Plan, snap *state.Snapshot) error {
	release, err := a.store.Lock()
	if err != nil {
		return err
	}
	defer release()

	summary := p.Summarize()
	a.logger.Info("🚀 Applying plan...",
		"create", summary.Create, "update", summary.Update, "delete", summary.Delete)

	applier := &plan.Applier{
		Graph:    s.graph,
		Scope:    s.scope,
		Provider: a.provider,
		Snapshot: snap,
	}
	applied, applyErr := applier.Apply(ctx, p)

	if applied > 0 {
		snap.Serial++
		if writeErr := a.store.Write(snap); writeErr != nil {
			if applyErr != nil {
				return fmt.Errorf("%w (and the state snapshot could not be written: %v)", applyErr, writeErr)
			}
			return writeErr
		}
	}
	if applyErr != nil {
		return applyErr
	}

	a.logger.Info("🏁 Apply complete.", "changed", applied)
	return nil
}

// report projects and prints the output bindings.
func (a *App) report(s *site) error {
	bindings, err := outputs.Project(s.model, s.scope)
	if err != nil {
		return err
	}
	a.printOutputs(bindings)
	return nil
}

func (a *App) printPlan(p *plan.Plan) {
	s := p.Summarize()
	fmt.Fprintf(a.outW, "\nPlan: %d to create, %d to update, %d to delete, %d unchanged.\n",
		s.Create, s.Update, s.Delete, s.Unchanged)
	for _, c := range p.Changes {
		if c.Action == plan.ActionNoop {
			continue
		}
		fmt.Fprintln(a.outW, plan.Describe(c))
	}
}

func (a *App) printOutputs(bindings []outputs.Binding) {
	if len(bindings) == 0 {
		return
	}
	fmt.Fprintln(a.outW, "\nOutputs:")
	for _, b := range bindings {
		fmt.Fprintf(a.outW, "  %s = %s\n", b.Name, outputs.FormatValue(b.Value))
	}
}

// confirm reads one line from the operator. Only "y" (either case) proceeds;
// anything else, including empty input and a closed stdin, cancels.
func (a *App) confirm(question string) (bool, error) {
	fmt.Fprintf(a.outW, "\n%s Only 'y' will be accepted: ", question)
	reader := bufio.NewReader(a.inR)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		// EOF with no input is a cancellation, not a failure.
		fmt.Fprintln(a.outW)
		return false, nil
	}
	answer := strings.TrimSpace(line)
	return answer == "y" || answer == "Y", nil
}

// seedScope loads last-known attributes into the scope so that output
// bindings and unchanged-node references resolve without an apply.
func seedScope(scope *eval.Scope, snap *state.Snapshot) {
	for address, rec := range snap.Resources {
		attrs := make(map[string]cty.Value)
		v := rec.Attributes.Value
		if v != cty.NilVal && !v.IsNull() && v.Type().IsObjectType() {
			for name := range v.Type().AttributeTypes() {
				attrs[name] = v.GetAttr(name)
			}
		}
		scope.SetNodeAttrs(address, rec.Kind, attrs)
	}
}
