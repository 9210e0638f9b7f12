package vault

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/yavuztopsever/obsidian-llm-suite/internal/plan"
	"github.com/yavuztopsever/obsidian-llm-suite/pkg/types"
)

func strptr(s string) *string { return &s }

// mockGenerator returns canned content keyed by instructions and fails for
// instructions listed in fail.
type mockGenerator struct {
	fail  map[string]bool
	calls []string
}

func (m *mockGenerator) Generate(_ context.Context, instructions string) (types.GeneratedContent, error) {
	m.calls = append(m.calls, instructions)
	if m.fail[instructions] {
		return types.GeneratedContent{}, fmt.Errorf("backend unavailable")
	}
	return types.GeneratedContent{
		Content:  "Generated body for: " + instructions,
		Concepts: []string{"concept one", "concept two"},
		Sources:  []types.Source{{Title: "Ref", URL: "https://example.com/" + instructions}},
	}, nil
}

// thirteenNotePlan builds the canonical test tree: one root, children a and
// b, five notes under a, four under b, and one level-3 note under a0.
func thirteenNotePlan(t *testing.T) *plan.Plan {
	t.Helper()
	notes := []types.TopicNote{
		{ID: "root", Title: "Main Topic", Instructions: "i-root", Level: 0},
		{ID: "a", Title: "Alpha", Instructions: "i-a", ParentID: strptr("root"), Level: 1},
		{ID: "b", Title: "Beta", Instructions: "i-b", ParentID: strptr("root"), Level: 1},
	}
	for i := 0; i < 5; i++ {
		notes = append(notes, types.TopicNote{
			ID: fmt.Sprintf("a%d", i), Title: fmt.Sprintf("Alpha %d", i),
			Instructions: fmt.Sprintf("i-a%d", i), ParentID: strptr("a"), Level: 2,
		})
	}
	for i := 0; i < 4; i++ {
		notes = append(notes, types.TopicNote{
			ID: fmt.Sprintf("b%d", i), Title: fmt.Sprintf("Beta %d", i),
			Instructions: fmt.Sprintf("i-b%d", i), ParentID: strptr("b"), Level: 2,
		})
	}
	notes = append(notes, types.TopicNote{
		ID: "a0x", Title: "Alpha 0 Deep", Instructions: "i-a0x", ParentID: strptr("a0"), Level: 3,
	})

	p, warnings, err := plan.Validate(notes, false)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	return p
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func TestMaterialize_FullTree(t *testing.T) {
	dir := t.TempDir()
	gen := &mockGenerator{}
	m := NewMaterializer(gen, dir, io.Discard)

	tree := BuildTree(thirteenNotePlan(t))
	rootPath, summary, err := m.Materialize(context.Background(), tree, "")
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}

	if want := filepath.Join(dir, "Main_Topic.md"); rootPath != want {
		t.Errorf("root path = %q, want %q", rootPath, want)
	}
	if summary.Planned != 13 || summary.Created != 13 || summary.Skipped() != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if files := listFiles(t, dir); len(files) != 13 {
		t.Errorf("output has %d files, want 13: %v", len(files), files)
	}

	root, err := os.ReadFile(rootPath)
	if err != nil {
		t.Fatal(err)
	}
	rootText := string(root)

	// Root body lists both children as wikilinks, in title order.
	subTopics := "## Sub-Topics\n- [[Main_Topic_Alpha]]\n- [[Main_Topic_Beta]]"
	if !strings.Contains(rootText, subTopics) {
		t.Errorf("root note missing sub-topics section:\n%s", rootText)
	}
	if strings.Contains(rootText, "parent_note:") {
		t.Errorf("root note should have no parent_note line:\n%s", rootText)
	}
	if !strings.Contains(rootText, "## Sources\n- [Ref](https://example.com/i-root)") {
		t.Errorf("root note missing sources section:\n%s", rootText)
	}

	// Children reference the root's basename in their metadata.
	alpha, err := os.ReadFile(filepath.Join(dir, "Main_Topic_Alpha.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(alpha), "parent_note: [[Main_Topic]]") {
		t.Errorf("child note missing parent link:\n%s", alpha)
	}

	// Lineage is encoded in basenames: each child stem extends its parent's.
	deep := filepath.Join(dir, "Main_Topic_Alpha_Alpha_0_Alpha_0_Deep.md")
	if _, err := os.Stat(deep); err != nil {
		t.Errorf("level-3 note missing: %v", err)
	}
}

func TestMaterialize_RootNameOverride(t *testing.T) {
	dir := t.TempDir()
	m := NewMaterializer(&mockGenerator{}, dir, io.Discard)

	tree := BuildTree(thirteenNotePlan(t))
	rootPath, _, err := m.Materialize(context.Background(), tree, "My Research Hub")
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}

	if want := filepath.Join(dir, "My_Research_Hub.md"); rootPath != want {
		t.Errorf("root path = %q, want %q", rootPath, want)
	}

	// Children prefix the overridden basename, not the title-derived one.
	alpha := filepath.Join(dir, "My_Research_Hub_Alpha.md")
	if _, err := os.Stat(alpha); err != nil {
		t.Errorf("child of renamed root missing: %v", err)
	}
}

func TestMaterialize_SkipsFailedSubtree(t *testing.T) {
	dir := t.TempDir()
	gen := &mockGenerator{fail: map[string]bool{"i-b": true}}
	m := NewMaterializer(gen, dir, io.Discard)

	tree := BuildTree(thirteenNotePlan(t))
	rootPath, summary, err := m.Materialize(context.Background(), tree, "")
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}

	// b and its four children are skipped: 13 - 5 = 8 files.
	if summary.Created != 8 || summary.Skipped() != 5 {
		t.Errorf("summary = %+v, want 8 created / 5 skipped", summary)
	}
	files := listFiles(t, dir)
	if len(files) != 8 {
		t.Errorf("output has %d files, want 8: %v", len(files), files)
	}
	for _, f := range files {
		if strings.Contains(f, "Beta") {
			t.Errorf("file %s belongs to the failed subtree", f)
		}
	}

	// The failed child's subtree is never attempted.
	for _, call := range gen.calls {
		if strings.HasPrefix(call, "i-b") && call != "i-b" {
			t.Errorf("generation attempted for descendant %q of failed node", call)
		}
	}

	// The root's sub-topics list omits the failed child.
	root, err := os.ReadFile(rootPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(root), "Main_Topic_Beta") {
		t.Errorf("root lists failed child:\n%s", root)
	}
	if !strings.Contains(string(root), "- [[Main_Topic_Alpha]]") {
		t.Errorf("root missing surviving child:\n%s", root)
	}
}

func TestMaterialize_RootFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	gen := &mockGenerator{fail: map[string]bool{"i-root": true}}
	m := NewMaterializer(gen, dir, io.Discard)

	tree := BuildTree(thirteenNotePlan(t))
	_, summary, err := m.Materialize(context.Background(), tree, "")
	if err == nil {
		t.Fatal("Materialize() succeeded with failed root, want error")
	}
	if summary.Created != 0 {
		t.Errorf("summary = %+v, want no files", summary)
	}
	if len(gen.calls) != 1 {
		t.Errorf("generator called %d times, want 1 (subtree never attempted)", len(gen.calls))
	}
	if files := listFiles(t, dir); len(files) != 0 {
		t.Errorf("output directory not empty: %v", files)
	}
}

func TestMaterialize_Deterministic(t *testing.T) {
	tree := BuildTree(thirteenNotePlan(t))

	snapshot := func() map[string]string {
		dir := t.TempDir()
		m := NewMaterializer(&mockGenerator{}, dir, io.Discard)
		if _, _, err := m.Materialize(context.Background(), tree, ""); err != nil {
			t.Fatalf("Materialize() error = %v", err)
		}
		out := make(map[string]string)
		for _, name := range listFiles(t, dir) {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				t.Fatal(err)
			}
			out[name] = string(data)
		}
		return out
	}

	first, second := snapshot(), snapshot()
	if len(first) != len(second) {
		t.Fatalf("runs produced %d and %d files", len(first), len(second))
	}
	for name, text := range first {
		if second[name] != text {
			t.Errorf("file %s differs between runs", name)
		}
	}
}

func TestMaterialize_EachNodeGeneratedOnce(t *testing.T) {
	dir := t.TempDir()
	gen := &mockGenerator{}
	m := NewMaterializer(gen, dir, io.Discard)

	tree := BuildTree(thirteenNotePlan(t))
	if _, _, err := m.Materialize(context.Background(), tree, ""); err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}

	seen := make(map[string]int)
	for _, call := range gen.calls {
		seen[call]++
	}
	for instructions, n := range seen {
		if n != 1 {
			t.Errorf("instructions %q generated %d times", instructions, n)
		}
	}
	if len(gen.calls) != 13 {
		t.Errorf("generator called %d times, want 13", len(gen.calls))
	}
}

func TestBuildTree_ExtraRootsDropped(t *testing.T) {
	notes := []types.TopicNote{
		{ID: "first", Title: "First Root", Instructions: "i-first", Level: 0},
		{ID: "second", Title: "Second Root", Instructions: "i-second", Level: 0},
		{ID: "c", Title: "Child", Instructions: "i-c", ParentID: strptr("second"), Level: 1},
	}
	p, _, err := plan.Validate(notes, false)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tree := BuildTree(p)
	if tree.Root.ID != "first" {
		t.Errorf("selected root = %q, want first in plan order", tree.Root.ID)
	}
	if len(tree.DroppedRoots) != 1 || tree.DroppedRoots[0].ID != "second" {
		t.Errorf("dropped roots = %+v", tree.DroppedRoots)
	}

	// No file is generated for dropped roots or their subtrees.
	dir := t.TempDir()
	gen := &mockGenerator{}
	m := NewMaterializer(gen, dir, io.Discard)
	if _, summary, err := m.Materialize(context.Background(), tree, ""); err != nil {
		t.Fatalf("Materialize() error = %v", err)
	} else if summary.Created != 1 || summary.Planned != 3 {
		t.Errorf("summary = %+v, want 1 created of 3 planned", summary)
	}
	if files := listFiles(t, dir); len(files) != 1 || files[0] != "First_Root.md" {
		t.Errorf("output files = %v", files)
	}
}

func TestBuildTree_ChildrenSortedByTitle(t *testing.T) {
	notes := []types.TopicNote{
		{ID: "root", Title: "Root", Instructions: "i", Level: 0},
		{ID: "z", Title: "Zeta", Instructions: "i", ParentID: strptr("root"), Level: 1},
		{ID: "m", Title: "Mu", Instructions: "i", ParentID: strptr("root"), Level: 1},
		{ID: "a", Title: "Alpha", Instructions: "i", ParentID: strptr("root"), Level: 1},
	}
	p, _, err := plan.Validate(notes, false)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	kids := BuildTree(p).Children("root")
	var titles []string
	for _, k := range kids {
		titles = append(titles, k.Title)
	}
	want := []string{"Alpha", "Mu", "Zeta"}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("children order = %v, want %v", titles, want)
		}
	}
}
