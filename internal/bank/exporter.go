package bank

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/alucardeht/membank/internal/model"
)

const dedupePrefixLength = 100

// ExportToAgents appends the record to every agent file whose mapped
// type matches the record's type. Existing file content is never
// rewritten or deleted; human edits stay intact. Per-agent failures are
// logged and the first one is returned after all agents were attempted.
func (e *Engine) ExportToAgents(ctx context.Context, mem *model.Memory) error {
	var firstErr error

	for _, agent := range e.agents {
		for filename, mapping := range agent.Files {
			if mapping.Type != mem.Type {
				continue
			}

			path := filepath.Join(e.workspace, agent.Dir, filename)
			if err := e.appendSection(path, mem); err != nil {
				log.Warn("export failed", "agent", agent.Name, "file", filename, "error", err)
				if firstErr == nil {
					firstErr = fmt.Errorf("export to %s/%s: %w", agent.Name, filename, err)
				}
			}
		}
	}

	return firstErr
}

// appendSection appends the record as a markdown section unless the
// file already carries it: a verbatim key match or the first 100
// characters of the content (case-insensitive) count as a duplicate.
func (e *Engine) appendSection(path string, mem *model.Memory) error {
	existing, err := readTextFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	if existing != "" {
		if strings.Contains(existing, mem.Key) {
			return nil
		}
		prefix := mem.Content
		if len(prefix) > dedupePrefixLength {
			// Back up so the cut never splits a multibyte rune.
			cut := dedupePrefixLength
			for cut > 0 && !utf8.RuneStart(prefix[cut]) {
				cut--
			}
			prefix = prefix[:cut]
		}
		if strings.Contains(strings.ToLower(existing), strings.ToLower(prefix)) {
			return nil
		}
	}

	section := formatSection(mem, existing != "")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(section)
	return err
}

func formatSection(mem *model.Memory, separated bool) string {
	var b strings.Builder
	if separated {
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## %s\n\n", mem.Key)
	b.WriteString(strings.TrimRight(mem.Content, "\n"))
	b.WriteString("\n\n")

	updated := time.UnixMilli(mem.UpdatedAt).UTC().Format("2006-01-02")
	fmt.Fprintf(&b, "*Type: %s | Tags: %s | Updated: %s*\n", mem.Type, strings.Join(mem.Tags, ", "), updated)

	return b.String()
}
