// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package research orchestrates the two-stage note generation pipeline:
// plan the topic tree, validate its shape, then materialize each topic as
// an interlinked note in the vault.
package research

import (
	"context"
	"fmt"
	"io"

	"github.com/yavuztopsever/obsidian-llm-suite/internal/content"
	"github.com/yavuztopsever/obsidian-llm-suite/internal/plan"
	"github.com/yavuztopsever/obsidian-llm-suite/internal/vault"
	"github.com/yavuztopsever/obsidian-llm-suite/pkg/types"
)

// Researcher drives a full research run. It owns no global state: config
// and backends are supplied at construction.
type Researcher struct {
	cfg       types.ResearchConfig
	planner   plan.Planner
	generator content.Generator
	progress  io.Writer
}

// New builds a Researcher from explicit config and backends.
func New(cfg types.ResearchConfig, planner plan.Planner, generator content.Generator, w io.Writer) *Researcher {
	return &Researcher{
		cfg:       cfg,
		planner:   planner,
		generator: generator,
		progress:  w,
	}
}

// Result reports a completed run.
type Result struct {
	// RootPath is the root note's file path.
	RootPath string

	// Summary counts planned versus created notes.
	Summary vault.Summary

	// Files maps note IDs to their written files, for indexing.
	Files map[string]*vault.FileInfo

	// Plan is the validated plan the run materialized.
	Plan *plan.Plan
}

// Run executes the pipeline for one input. Plan-quality warnings are
// logged and the run continues; structural plan errors and a failed root
// abort the run. Failed non-root notes degrade the output (their subtrees
// are omitted) without failing the run.
func (r *Researcher) Run(ctx context.Context, input Input) (*Result, error) {
	fmt.Fprintf(r.progress, "planning research structure for query (%d context documents)\n", len(input.Context))

	validated, warnings, err := plan.Generate(ctx, r.planner, input.PlannerPrompt(), r.cfg.Planning, r.cfg.Strict)
	for _, warning := range warnings {
		fmt.Fprintf(r.progress, "warning: %s\n", warning.Message)
	}
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(r.progress, "plan validated: %d notes\n", len(validated.Notes))

	tree := vault.BuildTree(validated)
	generator := content.WithRetry(r.generator, r.cfg.Content.MaxRetries)
	materializer := vault.NewMaterializer(generator, r.cfg.OutputDir, r.progress)

	rootPath, summary, err := materializer.Materialize(ctx, tree, input.RequiredRootName)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(r.progress, "created %d of %d notes (%d skipped)\n",
		summary.Created, summary.Planned, summary.Skipped())

	return &Result{
		RootPath: rootPath,
		Summary:  summary,
		Files:    materializer.Created(),
		Plan:     validated,
	}, nil
}
