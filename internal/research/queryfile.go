// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Input is a resolved research request: the query, optional pre-read
// context documents, and an optional required basename for the root note.
type Input struct {
	Query            string
	Context          []ContextDocument
	RequiredRootName string
}

// ContextDocument is an auxiliary document appended to the planning prompt.
type ContextDocument struct {
	Name string
	Text string
}

// queryFile is the on-disk YAML representation of a research request.
// Context document paths resolve relative to the YAML file's directory.
type queryFile struct {
	ResearchQuery struct {
		Query                     string   `yaml:"query"`
		ExtraContextDocumentPaths []string `yaml:"extra_context_document_paths"`
		RequiredRootFileName      string   `yaml:"required_root_file_name"`
	} `yaml:"research_query"`
}

// LoadInput reads a research request from path. A .yaml/.yml file is parsed
// as a query file; anything else is read whole as the query text. Context
// documents that cannot be read produce a warning on w, not an error.
func LoadInput(path string, w io.Writer) (Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Input{}, fmt.Errorf("reading input file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		query := strings.TrimSpace(string(data))
		if query == "" {
			return Input{}, fmt.Errorf("query file %s is empty", path)
		}
		return Input{Query: query}, nil
	}

	var qf queryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return Input{}, fmt.Errorf("parsing query file: %w", err)
	}
	if qf.ResearchQuery.Query == "" {
		return Input{}, fmt.Errorf("query file %s has no research_query.query field", path)
	}

	in := Input{
		Query:            qf.ResearchQuery.Query,
		RequiredRootName: qf.ResearchQuery.RequiredRootFileName,
	}

	baseDir := filepath.Dir(path)
	for _, docPath := range qf.ResearchQuery.ExtraContextDocumentPaths {
		resolved := docPath
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(baseDir, resolved)
		}
		text, err := os.ReadFile(resolved)
		if err != nil {
			fmt.Fprintf(w, "warning: could not read context document %s: %v\n", resolved, err)
			continue
		}
		in.Context = append(in.Context, ContextDocument{
			Name: filepath.Base(docPath),
			Text: string(text),
		})
	}

	return in, nil
}

// PlannerPrompt combines the query with any context documents into the
// prompt sent to the planning backend.
func (in Input) PlannerPrompt() string {
	if len(in.Context) == 0 {
		return in.Query
	}

	var b strings.Builder
	b.WriteString(in.Query)
	b.WriteString("\n\n--- Additional Context ---")
	for _, doc := range in.Context {
		fmt.Fprintf(&b, "\n\n--- Context from %s ---\n%s", doc.Name, doc.Text)
	}
	return b.String()
}
