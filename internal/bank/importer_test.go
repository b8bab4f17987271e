package bank

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alucardeht/membank/internal/model"
	"github.com/alucardeht/membank/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store, string) {
	t.Helper()
	st := store.New(t.TempDir())
	t.Cleanup(func() { st.Close() })

	workspace := t.TempDir()
	return NewEngine(st, "p1", workspace), st, workspace
}

func writeBankFile(t *testing.T, workspace, dir, name, content string) {
	t.Helper()
	full := filepath.Join(workspace, dir)
	if err := os.MkdirAll(full, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(full, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func clineAgent(t *testing.T) AgentConfig {
	t.Helper()
	for _, a := range SupportedAgents() {
		if a.Name == "cline" {
			return a
		}
	}
	t.Fatal("cline agent missing")
	return AgentConfig{}
}

func TestParseSections_SplitsOnHeaders(t *testing.T) {
	content := "# First Title\n\nbody one\n\n## Second Title\n\nbody two\n"

	sections := parseSections(content, "decisions.md")
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}

	if sections[0].key != "decisions-first-title" {
		t.Errorf("unexpected key: %q", sections[0].key)
	}
	if sections[0].body != "body one" {
		t.Errorf("unexpected body: %q", sections[0].body)
	}
	if sections[1].title != "Second Title" {
		t.Errorf("unexpected title: %q", sections[1].title)
	}
}

func TestParseSections_StripsFrontmatter(t *testing.T) {
	content := "---\ntitle: ignored\n---\n# Real Section\n\nbody\n"

	sections := parseSections(content, "bugs.md")
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if sections[0].title != "Real Section" {
		t.Errorf("frontmatter leaked into parsing: %+v", sections[0])
	}
}

func TestParseSections_HeaderlessFile(t *testing.T) {
	sections := parseSections("just some notes\nwithout any headers\n", "patterns.md")

	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if sections[0].key != "patterns" {
		t.Errorf("headerless file should be keyed by filename stem, got %q", sections[0].key)
	}
}

func TestSectionKey_Truncated(t *testing.T) {
	long := "An Exceedingly Long Header Title That Keeps Going And Going Forever"
	key := sectionKey("architecture.md", long)

	if len(key) > slugMaxLength {
		t.Errorf("key exceeds %d chars: %q", slugMaxLength, key)
	}
	if key != sectionKey("architecture.md", long) {
		t.Error("key derivation must be deterministic")
	}
}

func TestScrapeTags(t *testing.T) {
	body := "Uses the database layer.\n\n**Tags:** Alpha, beta\n"

	tags := scrapeTags(body, []string{"decision"}, "cline")

	want := map[string]bool{"decision": true, "alpha": true, "beta": true, "database": true, "cline": true}
	for _, tag := range tags {
		if !want[tag] {
			t.Errorf("unexpected tag %q", tag)
		}
		delete(want, tag)
	}
	for tag := range want {
		t.Errorf("missing tag %q", tag)
	}
}

func TestImportFromAgent(t *testing.T) {
	e, st, workspace := newTestEngine(t)
	ctx := context.Background()

	writeBankFile(t, workspace, "memory-bank", "decisions.md",
		"## Use sqlite\n\nSingle file, no server.\n\n## Batch writes\n\nGroup them.\n")

	n, err := e.ImportFromAgent(ctx, clineAgent(t))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 records, got %d", n)
	}

	mem, ok, err := st.Peek(ctx, "p1", "decisions-use-sqlite")
	if err != nil || !ok {
		t.Fatalf("record missing: ok=%v err=%v", ok, err)
	}
	if mem.Type != model.TypeDecision {
		t.Errorf("expected decision type, got %s", mem.Type)
	}
	if mem.Metadata.CreatedBy != "cline" {
		t.Errorf("expected createdBy cline, got %q", mem.Metadata.CreatedBy)
	}
	if mem.Metadata.SourceFile != "decisions.md" {
		t.Errorf("expected sourceFile provenance, got %q", mem.Metadata.SourceFile)
	}
	if !mem.HasTag("cline") {
		t.Errorf("agent name should be tagged, got %v", mem.Tags)
	}
}

func TestImport_ContentStableReimport(t *testing.T) {
	e, st, workspace := newTestEngine(t)
	ctx := context.Background()

	writeBankFile(t, workspace, "memory-bank", "bugs.md", "## Crash on empty input\n\nGuard the nil case.\n")

	agent := clineAgent(t)
	if _, err := e.ImportFromAgent(ctx, agent); err != nil {
		t.Fatal(err)
	}
	first, _, _ := st.Peek(ctx, "p1", "bugs-crash-on-empty-input")

	if _, err := e.ImportFromAgent(ctx, agent); err != nil {
		t.Fatal(err)
	}
	second, _, _ := st.Peek(ctx, "p1", "bugs-crash-on-empty-input")

	if second.ID != first.ID {
		t.Errorf("re-import must keep the id: %s != %s", second.ID, first.ID)
	}
	if second.CreatedAt != first.CreatedAt {
		t.Error("re-import must keep the creation time")
	}

	all, err := st.List(ctx, "p1", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("re-import must not duplicate, got %d records", len(all))
	}
}

func TestImportAll_SeedsOverviewWhenEmpty(t *testing.T) {
	e, st, workspace := newTestEngine(t)
	ctx := context.Background()

	n, err := e.ImportAll(ctx)
	if err != nil {
		t.Fatalf("import all: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected the seeded overview to count, got %d", n)
	}

	mem, ok, err := st.Peek(ctx, "p1", overviewKey)
	if err != nil || !ok {
		t.Fatalf("overview record missing: ok=%v err=%v", ok, err)
	}
	if mem.Type != model.TypeArchitecture {
		t.Errorf("unexpected overview type: %s", mem.Type)
	}

	// The seed is pushed out to the agents' architecture files too.
	exported := filepath.Join(workspace, "memory-bank", "architecture.md")
	if _, err := os.Stat(exported); err != nil {
		t.Errorf("overview should be exported to %s: %v", exported, err)
	}
}

func TestImport_SkipsUnreadableFileContinuesBatch(t *testing.T) {
	e, st, workspace := newTestEngine(t)
	ctx := context.Background()

	writeBankFile(t, workspace, "memory-bank", "bugs.md", "## Good Section\n\nfine\n")
	// A directory where a file is expected makes that one entry unreadable.
	if err := os.MkdirAll(filepath.Join(workspace, "memory-bank", "api.md"), 0755); err != nil {
		t.Fatal(err)
	}

	n, err := e.ImportFromAgent(ctx, clineAgent(t))
	if err != nil {
		t.Fatalf("a bad file must not abort the batch: %v", err)
	}
	if n != 1 {
		t.Errorf("expected the good file imported, got %d", n)
	}

	if _, ok, _ := st.Peek(ctx, "p1", "bugs-good-section"); !ok {
		t.Error("good section should have been imported")
	}
}
