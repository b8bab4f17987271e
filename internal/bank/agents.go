// Package bank bridges structured memory records and per-agent markdown
// memory-bank files: import parses markdown into records, export appends
// records as markdown sections, and a watcher re-imports on file changes.
package bank

import (
	"strings"

	"github.com/alucardeht/membank/internal/model"
)

// FileMapping ties one memory-bank filename to the record type and
// default tags its sections receive on import.
type FileMapping struct {
	Type model.MemoryType
	Tags []string
}

// AgentConfig describes one supported agent's memory-bank directory,
// relative to the workspace root. Changing a directory or filename here
// breaks compatibility with existing agent setups.
type AgentConfig struct {
	Name  string
	Dir   string
	Files map[string]FileMapping
}

func standardFiles() map[string]FileMapping {
	return map[string]FileMapping{
		"architecture.md": {Type: model.TypeArchitecture, Tags: []string{"architecture"}},
		"patterns.md":     {Type: model.TypePattern, Tags: []string{"pattern"}},
		"features.md":     {Type: model.TypeFeature, Tags: []string{"feature"}},
		"api.md":          {Type: model.TypeAPI, Tags: []string{"api"}},
		"bugs.md":         {Type: model.TypeBug, Tags: []string{"bug"}},
		"decisions.md":    {Type: model.TypeDecision, Tags: []string{"decision"}},
	}
}

// SupportedAgents returns the fixed agent configurations.
func SupportedAgents() []AgentConfig {
	return []AgentConfig{
		{Name: "cline", Dir: "memory-bank", Files: standardFiles()},
		{Name: "claude", Dir: ".claude/memory", Files: standardFiles()},
		{Name: "cursor", Dir: ".cursor/memory", Files: standardFiles()},
		{Name: "copilot", Dir: ".github/copilot-memory", Files: standardFiles()},
	}
}

// keywordVocabulary is the fixed set of technical terms scraped from
// section bodies as tags, matched case-insensitively.
var keywordVocabulary = []string{
	"api",
	"authentication",
	"cache",
	"database",
	"deployment",
	"docker",
	"performance",
	"security",
	"sql",
	"testing",
	"typescript",
	"websocket",
}

const slugMaxLength = 50

// sectionKey derives the deterministic record key for a section. The
// same (filename, title) pair always produces the same key, which is
// what makes re-import overwrite instead of duplicate.
func sectionKey(filename, title string) string {
	stem := strings.TrimSuffix(filename, ".md")
	return slugify(stem + "-" + title)
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > slugMaxLength {
		slug = strings.Trim(slug[:slugMaxLength], "-")
	}
	return slug
}
