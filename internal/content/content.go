// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package content generates note bodies for planned topics. A Generator
// turns a topic's instructions into Markdown content, extracted concepts,
// and web sources.
package content

import (
	"context"
	"math"
	"time"

	"github.com/yavuztopsever/obsidian-llm-suite/pkg/types"
)

// Generator abstracts the content backend so tests can supply a mock.
type Generator interface {
	Generate(ctx context.Context, instructions string) (types.GeneratedContent, error)
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// retrying wraps a Generator with exponential backoff on transient errors.
type retrying struct {
	backend    Generator
	maxRetries int
}

// WithRetry returns a Generator that retries failed calls with exponential
// backoff. A maxRetries of 0 or less uses the default (3). The wrapped
// call still fails after the retries are exhausted; the materializer
// decides what a failed node means for the rest of the tree.
func WithRetry(backend Generator, maxRetries int) Generator {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &retrying{backend: backend, maxRetries: maxRetries}
}

func (r *retrying) Generate(ctx context.Context, instructions string) (types.GeneratedContent, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return types.GeneratedContent{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := r.backend.Generate(ctx, instructions)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return types.GeneratedContent{}, lastErr
}
