// Package memorytools exposes the memory-bank operations as MCP tools.
// Every tool works against one fixed project: the Deps handle carries
// the project id alongside the store, cache and sync engine, and is
// threaded through construction instead of living in a global registry.
package memorytools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/alucardeht/membank/internal/bank"
	"github.com/alucardeht/membank/internal/cache"
	"github.com/alucardeht/membank/internal/logger"
	"github.com/alucardeht/membank/internal/model"
	"github.com/alucardeht/membank/internal/store"
	"github.com/alucardeht/membank/internal/tools"
)

var log = logger.ForComponent("memorytools")

// Relevance tunables for memory_search. Placeholder heuristic, not a
// contract.
const (
	scoreAccessWeight = 0.5
	scoreStaleWeight  = 0.0001
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

type Deps struct {
	Store     *store.Store
	Cache     *cache.Cache
	Bank      *bank.Engine
	ProjectID string
}

// GetTools returns the full tool suite bound to one project.
func GetTools(deps Deps) []tools.Tool {
	return []tools.Tool{
		&WriteTool{deps},
		&ReadTool{deps},
		&SearchTool{deps},
		&ListTool{deps},
		&UpdateTool{deps},
		&InitTool{deps},
		&StatsTool{deps},
	}
}

type WriteTool struct {
	deps Deps
}

func (t *WriteTool) Name() string {
	return "memory_write"
}

func (t *WriteTool) Description() string {
	return `Store a memory record in the project memory bank.

Records are keyed per project: writing an existing key overwrites the
record in place. The record is also mirrored into the matching agent
markdown files in the background.

TYPES:
- architecture: System design and structure
- pattern: Recurring solutions and conventions
- feature: Feature descriptions and behavior
- api: Endpoint and interface contracts
- bug: Known issues and their fixes
- decision: Why choices were made`
}

func (t *WriteTool) Title() string {
	return "Write Memory"
}

func (t *WriteTool) Annotations() map[string]bool {
	return tools.SafeWriteAnnotations()
}

func (t *WriteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"key": {
				"type": "string",
				"description": "Unique key within the project (max 255 chars)"
			},
			"type": {
				"type": "string",
				"enum": ["architecture", "pattern", "feature", "api", "bug", "decision"],
				"description": "Memory type"
			},
			"content": {
				"type": "string",
				"description": "Markdown content to store"
			},
			"tags": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Tags for searchability"
			},
			"relationships": {
				"type": "object",
				"properties": {
					"dependsOn": {"type": "array", "items": {"type": "string"}},
					"implements": {"type": "array", "items": {"type": "string"}}
				},
				"description": "Advisory links to other memory keys"
			},
			"createdBy": {
				"type": "string",
				"description": "Identifier of the writing agent"
			}
		},
		"required": ["key", "type", "content"]
	}`)
}

func (t *WriteTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var req WriteRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, err
	}

	if req.Key == "" {
		return nil, fmt.Errorf("key is required")
	}
	if req.Type == "" {
		return nil, fmt.Errorf("type is required")
	}
	if req.Content == "" {
		return nil, fmt.Errorf("content is required")
	}
	if req.CreatedBy == "" {
		req.CreatedBy = "mcp"
	}

	now := model.Now()
	mem := &model.Memory{
		ID:        model.NewID(),
		ProjectID: t.deps.ProjectID,
		Key:       req.Key,
		Type:      model.MemoryType(req.Type),
		Content:   req.Content,
		Tags:      req.Tags,
		Metadata:  model.Metadata{CreatedBy: req.CreatedBy},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Relationships != nil {
		mem.Relationships = *req.Relationships
	}

	if err := t.deps.Store.Write(ctx, t.deps.ProjectID, mem); err != nil {
		return nil, err
	}

	t.deps.Cache.Set(cache.Key(t.deps.ProjectID, mem.Key), mem)

	// The write does not wait for the markdown mirror; export failures
	// are logged, never surfaced to the caller.
	go func(mem *model.Memory) {
		if err := t.deps.Bank.ExportToAgents(context.Background(), mem); err != nil {
			log.Warn("markdown export failed", "key", mem.Key, "error", err)
		}
	}(mem)

	return WriteResult{Success: true, ID: mem.ID}, nil
}

type ReadTool struct {
	deps Deps
}

func (t *ReadTool) Name() string {
	return "memory_read"
}

func (t *ReadTool) Description() string {
	return "Read a memory record by key. Returns null when the key does not exist."
}

func (t *ReadTool) Title() string {
	return "Read Memory"
}

func (t *ReadTool) Annotations() map[string]bool {
	return tools.ReadOnlyAnnotations()
}

func (t *ReadTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"key": {
				"type": "string",
				"description": "Key of the record to read"
			}
		},
		"required": ["key"]
	}`)
}

func (t *ReadTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var req ReadRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, err
	}
	if req.Key == "" {
		return nil, fmt.Errorf("key is required")
	}

	cacheKey := cache.Key(t.deps.ProjectID, req.Key)
	if mem, ok := t.deps.Cache.Get(cacheKey); ok {
		// A hit must look exactly like a storage read: the access count
		// still advances and persists.
		touched, err := t.deps.Store.Touch(ctx, t.deps.ProjectID, req.Key)
		if err != nil {
			return nil, err
		}
		if touched {
			mem.Metadata.AccessCount++
			mem.UpdatedAt = model.Now()
			return mem, nil
		}
		// The record is gone from the store; drop the stale entry.
		t.deps.Cache.Delete(cacheKey)
	}

	mem, ok, err := t.deps.Store.Read(ctx, t.deps.ProjectID, req.Key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	t.deps.Cache.Set(cacheKey, mem)
	return mem, nil
}

type SearchTool struct {
	deps Deps
}

func (t *SearchTool) Name() string {
	return "memory_search"
}

func (t *SearchTool) Description() string {
	return `Search memory records with conjunctive filters.

Filters: type exact-match, tags any-match, query as case-insensitive
substring over key, content and tags. Results are ranked by access
frequency discounted by staleness.`
}

func (t *SearchTool) Title() string {
	return "Search Memories"
}

func (t *SearchTool) Annotations() map[string]bool {
	return tools.ReadOnlyAnnotations()
}

func (t *SearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Substring to match against key, content and tags"
			},
			"tags": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Match records carrying at least one of these tags"
			},
			"type": {
				"type": "string",
				"enum": ["architecture", "pattern", "feature", "api", "bug", "decision"],
				"description": "Restrict to one memory type"
			},
			"limit": {
				"type": "integer",
				"description": "Max results (default 10, max 100)"
			}
		}
	}`)
}

func (t *SearchTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var req SearchRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, err
	}

	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}
	if req.Limit > maxSearchLimit {
		req.Limit = maxSearchLimit
	}

	results, err := t.deps.Store.Search(ctx, t.deps.ProjectID, store.Query{
		Text: req.Query,
		Tags: req.Tags,
		Type: model.MemoryType(req.Type),
	})
	if err != nil {
		return nil, err
	}

	now := model.Now()
	sort.SliceStable(results, func(i, j int) bool {
		return relevance(results[i], now) > relevance(results[j], now)
	})

	if len(results) > req.Limit {
		results = results[:req.Limit]
	}

	return SearchResult{Total: len(results), Results: results}, nil
}

func relevance(mem *model.Memory, now int64) float64 {
	staleness := float64(now - mem.UpdatedAt)
	return float64(mem.Metadata.AccessCount)*scoreAccessWeight - staleness*scoreStaleWeight
}

type ListTool struct {
	deps Deps
}

func (t *ListTool) Name() string {
	return "memory_list"
}

func (t *ListTool) Description() string {
	return "List all memory records of the project, optionally filtered by type."
}

func (t *ListTool) Title() string {
	return "List Memories"
}

func (t *ListTool) Annotations() map[string]bool {
	return tools.ReadOnlyAnnotations()
}

func (t *ListTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"type": {
				"type": "string",
				"enum": ["architecture", "pattern", "feature", "api", "bug", "decision"],
				"description": "Restrict to one memory type"
			}
		}
	}`)
}

func (t *ListTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var req ListRequest
	if len(input) > 0 {
		if err := json.Unmarshal(input, &req); err != nil {
			return nil, err
		}
	}

	memories, err := t.deps.Store.List(ctx, t.deps.ProjectID, model.MemoryType(req.Type))
	if err != nil {
		return nil, err
	}

	return ListResult{Total: len(memories), Memories: memories}, nil
}

type UpdateTool struct {
	deps Deps
}

func (t *UpdateTool) Name() string {
	return "memory_update"
}

func (t *UpdateTool) Description() string {
	return `Partially update an existing memory record.

Only content, tags and relationships can change; omitted fields keep
their current values. Returns success=false with a null memory when the
key does not exist.`
}

func (t *UpdateTool) Title() string {
	return "Update Memory"
}

func (t *UpdateTool) Annotations() map[string]bool {
	return tools.SafeWriteAnnotations()
}

func (t *UpdateTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"key": {
				"type": "string",
				"description": "Key of the record to update"
			},
			"content": {
				"type": "string",
				"description": "New content (omit to keep current)"
			},
			"tags": {
				"type": "array",
				"items": {"type": "string"},
				"description": "New tags (omit to keep current)"
			},
			"relationships": {
				"type": "object",
				"properties": {
					"dependsOn": {"type": "array", "items": {"type": "string"}},
					"implements": {"type": "array", "items": {"type": "string"}}
				},
				"description": "New relationships (omit to keep current)"
			}
		},
		"required": ["key"]
	}`)
}

func (t *UpdateTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var req UpdateRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, err
	}
	if req.Key == "" {
		return nil, fmt.Errorf("key is required")
	}

	mem, ok, err := t.deps.Store.Update(ctx, t.deps.ProjectID, req.Key, store.UpdateFields{
		Content:       req.Content,
		Tags:          req.Tags,
		Relationships: req.Relationships,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return UpdateResult{Success: false, Memory: nil}, nil
	}

	t.deps.Cache.Set(cache.Key(t.deps.ProjectID, req.Key), mem)

	return UpdateResult{Success: true, Memory: mem}, nil
}

type InitTool struct {
	deps Deps
}

func (t *InitTool) Name() string {
	return "project_init"
}

func (t *InitTool) Description() string {
	return "Provision the memory store for the project. Idempotent."
}

func (t *InitTool) Title() string {
	return "Initialize Project"
}

func (t *InitTool) Annotations() map[string]bool {
	return tools.SafeWriteAnnotations()
}

func (t *InitTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {}
	}`)
}

func (t *InitTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err := t.deps.Store.InitProject(ctx, t.deps.ProjectID); err != nil {
		return nil, err
	}

	return InitResult{Success: true, ProjectID: t.deps.ProjectID}, nil
}

type StatsTool struct {
	deps Deps
}

func (t *StatsTool) Name() string {
	return "memory_stats"
}

func (t *StatsTool) Description() string {
	return "Report storage, cache and sync statistics for the project."
}

func (t *StatsTool) Title() string {
	return "Memory Stats"
}

func (t *StatsTool) Annotations() map[string]bool {
	return tools.ReadOnlyAnnotations()
}

func (t *StatsTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {}
	}`)
}

func (t *StatsTool) Execute(ctx context.Context, input json.RawMessage) (interface{}, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	storeStats, err := t.deps.Store.GetStats(ctx, t.deps.ProjectID)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"projectId": t.deps.ProjectID,
		"storage":   storeStats,
		"cache":     t.deps.Cache.Stats(),
		"sync":      t.deps.Bank.Capabilities(),
	}, nil
}
