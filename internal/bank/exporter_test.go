package bank

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alucardeht/membank/internal/model"
)

func exportMemory(key, content string) *model.Memory {
	now := model.Now()
	return &model.Memory{
		ID:        model.NewID(),
		ProjectID: "p1",
		Key:       key,
		Type:      model.TypeDecision,
		Content:   content,
		Tags:      []string{"decision"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestExport_CreatesFileWithSection(t *testing.T) {
	e, _, workspace := newTestEngine(t)

	mem := exportMemory("use-sqlite", "Single file, no server.")
	if err := e.ExportToAgents(context.Background(), mem); err != nil {
		t.Fatalf("export: %v", err)
	}

	path := filepath.Join(workspace, "memory-bank", "decisions.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}

	content := string(data)
	if !strings.Contains(content, "## use-sqlite") {
		t.Errorf("section header missing:\n%s", content)
	}
	if !strings.Contains(content, "Single file, no server.") {
		t.Errorf("body missing:\n%s", content)
	}
	if !strings.Contains(content, "*Type: decision") {
		t.Errorf("metadata footer missing:\n%s", content)
	}
}

func TestExport_SkipsWhenKeyPresent(t *testing.T) {
	e, _, workspace := newTestEngine(t)

	existing := "# Decisions\n\nTalks about use-sqlite already.\n"
	writeBankFile(t, workspace, "memory-bank", "decisions.md", existing)

	mem := exportMemory("use-sqlite", "Completely different content.")
	if err := e.ExportToAgents(context.Background(), mem); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(workspace, "memory-bank", "decisions.md"))
	if string(data) != existing {
		t.Errorf("file with the key present must stay untouched:\n%s", data)
	}
}

func TestExport_SkipsNearDuplicateContent(t *testing.T) {
	e, _, workspace := newTestEngine(t)

	body := "We chose sqlite because it needs no server process and ships as one file."
	existing := "# Notes\n\n" + strings.ToUpper(body) + "\n"
	writeBankFile(t, workspace, "memory-bank", "decisions.md", existing)

	mem := exportMemory("different-key", body)
	if err := e.ExportToAgents(context.Background(), mem); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(workspace, "memory-bank", "decisions.md"))
	if string(data) != existing {
		t.Errorf("near-duplicate content must be suppressed:\n%s", data)
	}
}

func TestExport_PrefixCutRespectsRuneBoundary(t *testing.T) {
	e, _, workspace := newTestEngine(t)

	// The 100-byte cut lands in the middle of the two-byte rune.
	body := strings.Repeat("a", 99) + "é and more text after the boundary"
	existing := "# Notes\n\n" + body + "\n"
	writeBankFile(t, workspace, "memory-bank", "decisions.md", existing)

	mem := exportMemory("unrelated-key", body)
	if err := e.ExportToAgents(context.Background(), mem); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(workspace, "memory-bank", "decisions.md"))
	if string(data) != existing {
		t.Errorf("duplicate content spanning a rune boundary must be suppressed:\n%s", data)
	}
}

func TestExport_AppendsWithoutRewriting(t *testing.T) {
	e, _, workspace := newTestEngine(t)

	existing := "# Decisions\n\nHand-written note that must survive.\n"
	writeBankFile(t, workspace, "memory-bank", "decisions.md", existing)

	mem := exportMemory("new-decision", "Fresh content nobody wrote before.")
	if err := e.ExportToAgents(context.Background(), mem); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(workspace, "memory-bank", "decisions.md"))
	content := string(data)

	if !strings.HasPrefix(content, existing) {
		t.Errorf("existing content must be preserved verbatim:\n%s", content)
	}
	if !strings.Contains(content, "## new-decision") {
		t.Errorf("new section missing:\n%s", content)
	}
}

func TestExport_OnlyMatchingTypeFiles(t *testing.T) {
	e, _, workspace := newTestEngine(t)

	mem := exportMemory("some-decision", "content")
	if err := e.ExportToAgents(context.Background(), mem); err != nil {
		t.Fatalf("export: %v", err)
	}

	if _, err := os.Stat(filepath.Join(workspace, "memory-bank", "bugs.md")); !os.IsNotExist(err) {
		t.Error("a decision record must not be written to bugs.md")
	}
}
