// Package cli defines the stratus command surface: deploy, plan, apply,
// destroy, validate and output, plus the flags they share.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	ucli "github.com/urfave/cli/v2"

	"github.com/stratushq/stratus/internal/app"
	"github.com/stratushq/stratus/internal/hcl"
	"github.com/stratushq/stratus/internal/provider"
	"github.com/stratushq/stratus/internal/provider/aws"
	"github.com/stratushq/stratus/internal/provider/memory"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// NewApp builds the command tree. outW carries user-facing output (plans,
// prompts, output bindings), errW carries logs, inR feeds the confirmation
// prompt.
func NewApp(outW, errW io.Writer, inR io.Reader) *ucli.App {
	return &ucli.App{
		Name:      "stratus",
		Usage:     "declarative S3 + CloudFront static site provisioning",
		Writer:    outW,
		ErrWriter: errW,
		Flags: []ucli.Flag{
			&ucli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   ".",
				Usage:   "path to a site definition .hcl file or a directory of them",
			},
			&ucli.StringFlag{
				Name:  "state",
				Value: "stratus.state.json",
				Usage: "path to the persisted state snapshot",
			},
			&ucli.StringFlag{
				Name:  "plan-file",
				Value: "stratus.plan.json",
				Usage: "path to the pending plan artifact",
			},
			&ucli.StringFlag{
				Name:  "region",
				Usage: "AWS region (overrides the ambient configuration)",
			},
			&ucli.StringSliceFlag{
				Name:  "var",
				Usage: "variable override as name=value (repeatable)",
			},
			&ucli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "logging level: debug, info, warn or error",
			},
			&ucli.StringFlag{
				Name:  "log-format",
				Value: "text",
				Usage: "log output format: text or json",
			},
			&ucli.BoolFlag{
				Name:  "auto-approve",
				Usage: "skip the interactive confirmation prompt",
			},
			&ucli.BoolFlag{
				Name:  "dry-run",
				Usage: "reconcile against an in-memory provider instead of AWS",
			},
		},
		Commands: []*ucli.Command{
			{
				Name:   "deploy",
				Usage:  "plan and, after confirmation, apply the site",
				Action: action(outW, errW, inR, true, (*app.App).Deploy),
			},
			{
				Name:   "plan",
				Usage:  "compute and store a plan without applying it",
				Action: action(outW, errW, inR, true, (*app.App).Plan),
			},
			{
				Name:   "apply",
				Usage:  "execute a previously computed plan",
				Action: action(outW, errW, inR, true, (*app.App).Apply),
			},
			{
				Name:   "destroy",
				Usage:  "remove everything recorded in state, dependents first",
				Action: action(outW, errW, inR, true, (*app.App).Destroy),
			},
			{
				Name:   "validate",
				Usage:  "load the configuration and validate the resource graph",
				Action: action(outW, errW, inR, false, (*app.App).Validate),
			},
			{
				Name:   "output",
				Usage:  "print the output bindings from the persisted state",
				Action: action(outW, errW, inR, false, (*app.App).Output),
			},
		},
	}
}

// action adapts an app method into a CLI action, constructing the provider
// only for commands that actually reconcile or probe.
func action(outW, errW io.Writer, inR io.Reader, needsProvider bool, run func(*app.App, context.Context) error) ucli.ActionFunc {
	return func(c *ucli.Context) error {
		cfg, err := buildConfig(c)
		if err != nil {
			return &ExitError{Code: 2, Message: err.Error()}
		}

		var prov provider.Provider
		if needsProvider {
			if cfg.DryRun {
				prov = memory.New()
			} else {
				awsProv, err := aws.New(c.Context, cfg.Region)
				if err != nil {
					return &ExitError{Code: 1, Message: err.Error()}
				}
				prov = awsProv
			}
		}

		application := app.New(outW, errW, inR, cfg, hcl.NewLoader(), prov)
		if err := run(application, c.Context); err != nil {
			var preflight *app.PreflightError
			if errors.As(err, &preflight) {
				return &ExitError{Code: 1, Message: preflight.Error()}
			}
			return &ExitError{Code: 1, Message: err.Error()}
		}
		return nil
	}
}

// buildConfig validates the shared flags and assembles the app config.
func buildConfig(c *ucli.Context) (*app.Config, error) {
	logFormat := strings.ToLower(c.String("log-format"))
	if logFormat != "text" && logFormat != "json" {
		return nil, fmt.Errorf("invalid log-format: must be 'text' or 'json'")
	}

	logLevel := strings.ToLower(c.String("log-level"))
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}

	vars, err := parseVars(c.StringSlice("var"))
	if err != nil {
		return nil, err
	}

	return &app.Config{
		ConfigPath:  c.String("config"),
		StatePath:   c.String("state"),
		PlanPath:    c.String("plan-file"),
		Region:      c.String("region"),
		Vars:        vars,
		LogLevel:    logLevel,
		LogFormat:   logFormat,
		AutoApprove: c.Bool("auto-approve"),
		DryRun:      c.Bool("dry-run"),
	}, nil
}

// parseVars splits repeated -var flags on the first '='.
func parseVars(raw []string) (map[string]string, error) {
	vars := make(map[string]string, len(raw))
	for _, entry := range raw {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid -var %q: expected name=value", entry)
		}
		vars[name] = value
	}
	return vars, nil
}
