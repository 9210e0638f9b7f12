// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// TopicNote is a single node of a research plan as proposed by the planning
// backend. Notes form a tree through ParentID references.
type TopicNote struct {
	// ID is an opaque token unique within a plan (e.g. "root", "sub1.2").
	ID string `json:"id" yaml:"id"`

	// Title is a short human-readable label; it also seeds the note filename.
	Title string `json:"title" yaml:"title"`

	// Instructions direct the content stage for this topic.
	Instructions string `json:"instructions" yaml:"instructions"`

	// ParentID references another note's ID, or is nil for the root.
	ParentID *string `json:"parent_id" yaml:"parent_id"`

	// Level is the hierarchy depth: 0 for the root, parent level + 1 otherwise.
	Level int `json:"level" yaml:"level"`
}

// IsRoot reports whether the note has no parent.
func (n TopicNote) IsRoot() bool {
	return n.ParentID == nil
}

// Source is a web citation attached to generated content.
type Source struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// GeneratedContent is the content stage's output for one topic note.
type GeneratedContent struct {
	// Content is the generated Markdown body.
	Content string `json:"content" yaml:"content"`

	// Concepts are bare keyword strings (no leading '#') drawn from the content.
	Concepts []string `json:"concepts" yaml:"concepts"`

	// Sources lists web sources consulted during generation. May be empty.
	Sources []Source `json:"sources" yaml:"sources"`
}
