// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package plan

import (
	"fmt"

	"github.com/yavuztopsever/obsidian-llm-suite/pkg/types"
)

// Plan is a validated research plan. It is immutable after validation: the
// materializer reads it but never modifies it.
type Plan struct {
	// Notes preserves the order the planning backend proposed. Order matters
	// for root selection when the backend proposes more than one root.
	Notes []types.TopicNote
}

// StructuralError reports a malformed plan: duplicate IDs, dangling parent
// references, inconsistent levels, or a missing root. Structural errors are
// fatal — generating content against a broken tree would produce broken
// cross-links.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string {
	return "invalid research plan: " + e.Reason
}

// WarningCode identifies a soft plan-quality issue.
type WarningCode string

const (
	WarnNoteCount  WarningCode = "note-count"
	WarnDepth      WarningCode = "depth"
	WarnExtraRoots WarningCode = "extra-roots"
)

// Warning describes a plan-quality issue that does not invalidate the plan.
type Warning struct {
	Code    WarningCode
	Message string
}

// Validate checks a proposed note list against the plan invariants.
//
// Structural checks fail fast, in order: non-empty list, unique IDs, every
// parent_id resolves, level 0 exactly for roots, child level = parent
// level + 1, at least one root. A violation returns a *StructuralError.
//
// Depth, note count, and extra roots are quality heuristics, not
// correctness constraints: rejecting an otherwise well-formed plan would
// discard expensive generation work, so they are returned as warnings.
// In strict mode the depth and count bounds are enforced as errors.
func Validate(notes []types.TopicNote, strict bool) (*Plan, []Warning, error) {
	if len(notes) == 0 {
		return nil, nil, &StructuralError{Reason: "plan contains no notes"}
	}

	byID := make(map[string]types.TopicNote, len(notes))
	for _, n := range notes {
		if n.ID == "" {
			return nil, nil, &StructuralError{Reason: fmt.Sprintf("note %q has an empty id", n.Title)}
		}
		if _, dup := byID[n.ID]; dup {
			return nil, nil, &StructuralError{Reason: fmt.Sprintf("duplicate note id %q", n.ID)}
		}
		byID[n.ID] = n
	}

	for _, n := range notes {
		if n.ParentID == nil {
			continue
		}
		if _, ok := byID[*n.ParentID]; !ok {
			return nil, nil, &StructuralError{
				Reason: fmt.Sprintf("note %q references non-existent parent %q", n.ID, *n.ParentID),
			}
		}
	}

	roots := 0
	for _, n := range notes {
		switch {
		case n.ParentID == nil:
			if n.Level != 0 {
				return nil, nil, &StructuralError{
					Reason: fmt.Sprintf("root note %q has level %d, want 0", n.ID, n.Level),
				}
			}
			roots++
		default:
			parent := byID[*n.ParentID]
			if n.Level != parent.Level+1 {
				return nil, nil, &StructuralError{
					Reason: fmt.Sprintf("note %q has level %d, but parent %q has level %d",
						n.ID, n.Level, parent.ID, parent.Level),
				}
			}
		}
	}

	if roots == 0 {
		return nil, nil, &StructuralError{Reason: "no root note (parent_id=null) found"}
	}

	var warnings []Warning

	if roots > 1 {
		warnings = append(warnings, Warning{
			Code: WarnExtraRoots,
			Message: fmt.Sprintf("plan has %d root notes; only the first in plan order is used, the rest are dropped",
				roots),
		})
	}

	maxLevel := 0
	for _, n := range notes {
		if n.Level > maxLevel {
			maxLevel = n.Level
		}
	}

	if n := len(notes); n < MinNotes || n > MaxNotes {
		msg := fmt.Sprintf("plan has %d notes, outside the target range %d-%d", n, MinNotes, MaxNotes)
		if strict {
			return nil, warnings, fmt.Errorf("strict mode: %s", msg)
		}
		warnings = append(warnings, Warning{Code: WarnNoteCount, Message: msg})
	}

	if maxLevel < MinMaxLevel || maxLevel > MaxMaxLevel {
		msg := fmt.Sprintf("plan has %d levels, outside the target range %d-%d levels",
			maxLevel+1, MinMaxLevel+1, MaxMaxLevel+1)
		if strict {
			return nil, warnings, fmt.Errorf("strict mode: %s", msg)
		}
		warnings = append(warnings, Warning{Code: WarnDepth, Message: msg})
	}

	return &Plan{Notes: notes}, warnings, nil
}
