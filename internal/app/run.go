package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"github.com/specialistvlad/babago/internal/ctxlog"
	"github.com/specialistvlad/babago/internal/datafile"
	"github.com/specialistvlad/babago/internal/registry"
)

// listWidth is the column -list output is wrapped at.
const listWidth = 80

// Run executes the main application logic based on the app configuration.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")
	defer a.Close()

	if a.config.BundleOut != "" {
		if err := a.writeBundle(a.config.BundleOut); err != nil {
			return fmt.Errorf("failed to write bundle: %w", err)
		}
	}

	if a.config.List {
		if err := a.list(a.outW); err != nil {
			return err
		}
	}

	if a.config.Template != "" {
		if err := a.renderOne(ctx); err != nil {
			return err
		}
	}

	if a.config.ServePort > 0 {
		if err := a.serve(ctx); err != nil {
			return err
		}
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

func (a *App) renderOne(ctx context.Context) error {
	var data any
	if a.config.DataPath != "" {
		var err error
		data, err = datafile.Load(ctx, a.config.DataPath)
		if err != nil {
			return fmt.Errorf("failed to load data: %w", err)
		}
	}

	out, err := a.registry.Generate(ctx, registry.Request{Name: a.config.Template, Data: data})
	if err != nil {
		return err
	}
	_, err = io.WriteString(a.outW, out)
	return err
}

// list prints every template name, followed by its requirements wrapped
// and indented.
func (a *App) list(w io.Writer) error {
	for _, name := range a.registry.Names() {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
		deps := describe(a.registry.Dependencies(name))
		if deps == "" {
			continue
		}
		wrapped := wordwrap.WrapString(deps, listWidth-4)
		for _, line := range strings.Split(wrapped, "\n") {
			if _, err := fmt.Fprintln(w, "    "+line); err != nil {
				return err
			}
		}
	}
	return nil
}

func describe(r registry.Requirements) string {
	var parts []string
	if len(r.Templates) > 0 {
		parts = append(parts, "templates: "+strings.Join(r.Templates, ", "))
	}
	if len(r.Scripts) > 0 {
		parts = append(parts, "scripts: "+strings.Join(r.Scripts, ", "))
	}
	if len(r.Styles) > 0 {
		parts = append(parts, "styles: "+strings.Join(r.Styles, ", "))
	}
	return strings.Join(parts, "; ")
}
