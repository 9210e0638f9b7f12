// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package plan produces and validates hierarchical research plans.
// The planning backend proposes a flat list of topic notes; Validate
// enforces the tree-shape invariants before any content generation runs.
package plan

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/yavuztopsever/obsidian-llm-suite/pkg/types"
)

// Shape bounds for a well-proportioned plan. Violations are soft: the plan
// is still usable, but the orchestrator surfaces them as warnings.
const (
	MinNotes = 10
	MaxNotes = 15

	// MinMaxLevel/MaxMaxLevel bound the deepest level in a plan.
	// Level 0 is the root, so 2..4 means 3 to 5 levels overall.
	MinMaxLevel = 2
	MaxMaxLevel = 4
)

// Planner abstracts the planning backend so tests can supply a mock.
// A Planner turns a research query into a flat list of topic notes.
type Planner interface {
	Plan(ctx context.Context, query string) ([]types.TopicNote, error)
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the planning backend with exponential backoff.
func callWithRetry(ctx context.Context, backend Planner, query string, maxRetries int) ([]types.TopicNote, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		notes, err := backend.Plan(ctx, query)
		if err == nil {
			return notes, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// Generate runs the planning backend with retries and validates the result.
// Returned warnings describe soft shape violations; in strict mode those
// become errors instead.
func Generate(ctx context.Context, backend Planner, query string, cfg types.PlanningConfig, strict bool) (*Plan, []Warning, error) {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	notes, err := callWithRetry(ctx, backend, query, maxRetries)
	if err != nil {
		return nil, nil, fmt.Errorf("planning query: %w", err)
	}

	return Validate(notes, strict)
}
