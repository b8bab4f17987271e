package bank

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alucardeht/membank/internal/logger"
	"github.com/alucardeht/membank/internal/model"
	"github.com/alucardeht/membank/internal/store"
)

var log = logger.ForComponent("bank")

// Engine is the markdown sync engine for one project's workspace.
type Engine struct {
	store     *store.Store
	projectID string
	workspace string
	agents    []AgentConfig
	watcher   *Watcher
}

func NewEngine(st *store.Store, projectID, workspace string) *Engine {
	return &Engine{
		store:     st,
		projectID: projectID,
		workspace: workspace,
		agents:    SupportedAgents(),
	}
}

// Capabilities describes the sync surface for memory_stats.
type Capabilities struct {
	Agents   []string `json:"agents"`
	Watching bool     `json:"watching"`
}

func (e *Engine) Capabilities() Capabilities {
	caps := Capabilities{Watching: e.watcher != nil}
	for _, a := range e.agents {
		caps.Agents = append(caps.Agents, a.Name)
	}
	return caps
}

// ImportAll imports every agent's memory-bank files. When nothing at
// all was imported, it seeds a default project-overview record and
// exports it to every agent so a fresh project is never empty.
func (e *Engine) ImportAll(ctx context.Context) (int, error) {
	total := 0
	for _, agent := range e.agents {
		n, err := e.ImportFromAgent(ctx, agent)
		if err != nil {
			log.Warn("agent import failed", "agent", agent.Name, "error", err)
			continue
		}
		total += n
	}

	if total == 0 {
		if err := e.seedOverview(ctx); err != nil {
			return 0, err
		}
		total = 1
	}

	return total, nil
}

// ImportFromAgent imports every mapped file of one agent. A failing
// file is logged and skipped; it never aborts the rest of the batch.
func (e *Engine) ImportFromAgent(ctx context.Context, agent AgentConfig) (int, error) {
	dir := filepath.Join(e.workspace, agent.Dir)
	if _, err := os.Stat(dir); err != nil {
		return 0, nil
	}

	imported := 0
	for filename, mapping := range agent.Files {
		path := filepath.Join(dir, filename)

		content, err := readTextFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Warn("skipping unreadable file", "agent", agent.Name, "file", filename, "error", err)
			}
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		sections := parseSections(content, filename)
		for _, sec := range sections {
			if err := e.importSection(ctx, agent, filename, mapping, sec); err != nil {
				log.Warn("section import failed", "agent", agent.Name, "file", filename, "key", sec.key, "error", err)
				continue
			}
			imported++
		}
	}

	return imported, nil
}

type section struct {
	key   string
	title string
	body  string
}

// parseSections strips a leading YAML frontmatter block, then splits on
// level-1/level-2 headers. Each header plus its body becomes one
// candidate record. A file without headers yields a single section
// keyed by the filename stem.
func parseSections(content, filename string) []section {
	content = stripFrontmatter(content)
	lines := strings.Split(content, "\n")

	var sections []section
	var title string
	var body []string
	seenHeader := false

	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if title == "" || text == "" {
			return
		}
		sections = append(sections, section{
			key:   sectionKey(filename, title),
			title: title,
			body:  text,
		})
	}

	for _, line := range lines {
		if h, ok := headerTitle(line); ok {
			flush()
			title = h
			body = body[:0]
			seenHeader = true
			continue
		}
		body = append(body, line)
	}
	flush()

	if !seenHeader {
		text := strings.TrimSpace(content)
		if text == "" {
			return nil
		}
		stem := strings.TrimSuffix(filename, ".md")
		return []section{{key: slugify(stem), title: stem, body: text}}
	}

	return sections
}

func headerTitle(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range []string{"## ", "# "} {
		if strings.HasPrefix(trimmed, prefix) {
			title := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
			return title, title != ""
		}
	}
	return "", false
}

func stripFrontmatter(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}
	rest := content[3:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return content
	}
	after := rest[end+len("\n---"):]
	if nl := strings.IndexByte(after, '\n'); nl >= 0 {
		return after[nl+1:]
	}
	return ""
}

func (e *Engine) importSection(ctx context.Context, agent AgentConfig, filename string, mapping FileMapping, sec section) error {
	now := model.Now()

	mem := &model.Memory{
		ID:        model.NewID(),
		ProjectID: e.projectID,
		Key:       sec.key,
		Type:      mapping.Type,
		Content:   sec.body,
		Tags:      scrapeTags(sec.body, mapping.Tags, agent.Name),
		Metadata: model.Metadata{
			CreatedBy:  agent.Name,
			SourceFile: filename,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Re-import is content-stable: the deterministic key maps back to
	// the same record, which keeps its original id and creation time.
	existing, ok, err := e.store.Peek(ctx, e.projectID, sec.key)
	if err != nil {
		return err
	}
	if ok {
		mem.ID = existing.ID
		mem.CreatedAt = existing.CreatedAt
		mem.Metadata.AccessCount = existing.Metadata.AccessCount
	}

	return e.store.Write(ctx, e.projectID, mem)
}

// scrapeTags collects tags from the mapping defaults, an explicit
// "**Tags:**"/"**Keywords:**" line, the fixed keyword vocabulary, and
// the agent name. Duplicates are dropped, first occurrence wins.
func scrapeTags(body string, defaults []string, agentName string) []string {
	var tags []string
	seen := make(map[string]bool)
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, t := range defaults {
		add(t)
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, marker := range []string{"**Tags:**", "**Keywords:**"} {
			if strings.HasPrefix(trimmed, marker) {
				for _, t := range strings.Split(strings.TrimPrefix(trimmed, marker), ",") {
					add(t)
				}
			}
		}
	}

	lower := strings.ToLower(body)
	for _, kw := range keywordVocabulary {
		if strings.Contains(lower, kw) {
			add(kw)
		}
	}

	add(agentName)
	return tags
}

const overviewKey = "project-overview"

func (e *Engine) seedOverview(ctx context.Context) error {
	now := model.Now()
	mem := &model.Memory{
		ID:        model.NewID(),
		ProjectID: e.projectID,
		Key:       overviewKey,
		Type:      model.TypeArchitecture,
		Content: "# Project Overview\n\n" +
			"This memory bank tracks architecture, patterns, features, APIs, bugs and decisions for the project.\n\n" +
			"No agent memory-bank files were found to import. Write memories through the memory_write tool " +
			"or edit the markdown files directly; changes are picked up automatically.",
		Tags: []string{"overview"},
		Metadata: model.Metadata{
			CreatedBy: "membank",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.store.Write(ctx, e.projectID, mem); err != nil {
		return fmt.Errorf("seed overview: %w", err)
	}

	if err := e.ExportToAgents(ctx, mem); err != nil {
		log.Warn("overview export failed", "error", err)
	}
	return nil
}
