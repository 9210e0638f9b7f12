// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vault

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yavuztopsever/obsidian-llm-suite/internal/content"
	"github.com/yavuztopsever/obsidian-llm-suite/pkg/types"
)

// FileInfo describes one written note file.
type FileInfo struct {
	// Path is the full file path under the output directory.
	Path string

	// Basename is the filename stem, used for wikilinks to this note.
	Basename string
}

// Summary reports how much of the plan made it to disk.
type Summary struct {
	// Planned is the number of notes in the validated plan.
	Planned int

	// Created is the number of note files written.
	Created int
}

// Skipped returns the number of planned notes that produced no file:
// failed generations, their subtrees, and dropped extra roots.
func (s Summary) Skipped() int {
	return s.Planned - s.Created
}

// Materializer walks a plan tree depth-first and writes one note file per
// topic. Run state (the memo of created files, the processed set) lives on
// the struct rather than in closures, so each node is materialized at most
// once no matter how it is reached.
type Materializer struct {
	generator content.Generator
	outputDir string
	progress  io.Writer

	created   map[string]*FileInfo
	processed map[string]bool
}

// NewMaterializer builds a Materializer writing into outputDir. Progress
// lines go to w.
func NewMaterializer(generator content.Generator, outputDir string, w io.Writer) *Materializer {
	return &Materializer{
		generator: generator,
		outputDir: outputDir,
		progress:  w,
		created:   make(map[string]*FileInfo),
		processed: make(map[string]bool),
	}
}

// Materialize generates content for every reachable note in the tree and
// writes the note files. requiredRootName, when non-empty, overrides the
// root note's basename (e.g. to replace a pre-existing note).
//
// A note whose content generation fails is skipped along with its entire
// subtree; siblings continue. Failure of the root itself is fatal, since
// there is no output without a root. The returned path is the root file.
func (m *Materializer) Materialize(ctx context.Context, tree *Tree, requiredRootName string) (string, Summary, error) {
	summary := Summary{Planned: tree.NoteCount}

	if err := os.MkdirAll(m.outputDir, 0o755); err != nil {
		return "", summary, fmt.Errorf("creating output directory: %w", err)
	}

	rootOverride := ""
	if requiredRootName != "" {
		rootOverride = SanitizeFilename(requiredRootName)
	}

	rootInfo := m.materializeNote(ctx, tree, tree.Root, "", rootOverride)
	summary.Created = len(m.created)
	if rootInfo == nil {
		return "", summary, fmt.Errorf("root note %q could not be materialized", tree.Root.Title)
	}

	return rootInfo.Path, summary, nil
}

// materializeNote creates the file for one note and, recursively, its
// children. It returns nil when the note produced no file; callers omit
// such notes from their sub-topic links.
func (m *Materializer) materializeNote(ctx context.Context, tree *Tree, note types.TopicNote, parentBasename, rootOverride string) *FileInfo {
	if m.processed[note.ID] {
		return m.created[note.ID]
	}

	generated, err := m.generator.Generate(ctx, note.Instructions)
	if err != nil {
		fmt.Fprintf(m.progress, "failed  %s: %v\n", note.Title, err)
		m.processed[note.ID] = true
		return nil
	}

	basename := m.basenameFor(note, parentBasename, rootOverride)
	path := filepath.Join(m.outputDir, basename+".md")

	// Children are materialized before this note's body is assembled: the
	// body lists the children that actually produced files.
	var childLinks []string
	for _, child := range tree.Children(note.ID) {
		if info := m.materializeNote(ctx, tree, child, basename, ""); info != nil {
			childLinks = append(childLinks, "- "+FormatLink(info.Basename))
		}
	}

	var body strings.Builder
	fmt.Fprintf(&body, "# %s\n\n%s\n", note.Title, generated.Content)

	if sources := formatSources(generated.Sources); sources != "" {
		body.WriteString("\n## Sources\n" + sources)
	}

	if len(childLinks) > 0 {
		body.WriteString("\n## Sub-Topics\n" + strings.Join(childLinks, "\n") + "\n")
	}

	final := FormatNote(body.String(), "note", generated.Concepts, parentBasename, nil)

	if err := os.WriteFile(path, []byte(final+"\n"), 0o644); err != nil {
		fmt.Fprintf(m.progress, "failed  %s: write error: %v\n", note.Title, err)
		m.processed[note.ID] = true
		return nil
	}

	info := &FileInfo{Path: path, Basename: basename}
	m.created[note.ID] = info
	m.processed[note.ID] = true
	fmt.Fprintf(m.progress, "created %s\n", path)
	return info
}

// basenameFor computes a note's filename stem. The root uses the override
// when one was supplied, otherwise its sanitized title; children prefix
// their parent's basename so lineage is readable from the filename and
// sibling stems cannot collide across branches.
func (m *Materializer) basenameFor(note types.TopicNote, parentBasename, rootOverride string) string {
	if parentBasename == "" {
		if rootOverride != "" {
			return rootOverride
		}
		return SanitizeFilename(note.Title)
	}
	return parentBasename + "_" + SanitizeFilename(note.Title)
}

// formatSources renders the sources list. Entries without a URL are
// dropped; an empty result suppresses the whole section.
func formatSources(sources []types.Source) string {
	var b strings.Builder
	for _, src := range sources {
		if src.URL == "" {
			continue
		}
		title := src.Title
		if title == "" {
			title = "Source"
		}
		fmt.Fprintf(&b, "- [%s](%s)\n", title, src.URL)
	}
	return b.String()
}

// Created returns the memoized file descriptors keyed by note ID.
func (m *Materializer) Created() map[string]*FileInfo {
	return m.created
}
