package memorytools

import "github.com/alucardeht/membank/internal/model"

// Request payloads for each tool. The protocol layer and the dispatcher
// share these shapes; the projectId is never part of them, it is
// injected at construction so callers cannot address another project.

type WriteRequest struct {
	Key           string               `json:"key"`
	Type          string               `json:"type"`
	Content       string               `json:"content"`
	Tags          []string             `json:"tags"`
	Relationships *model.Relationships `json:"relationships"`
	CreatedBy     string               `json:"createdBy"`
}

type ReadRequest struct {
	Key string `json:"key"`
}

type SearchRequest struct {
	Query string   `json:"query"`
	Tags  []string `json:"tags"`
	Type  string   `json:"type"`
	Limit int      `json:"limit"`
}

type ListRequest struct {
	Type string `json:"type"`
}

type UpdateRequest struct {
	Key           string               `json:"key"`
	Content       *string              `json:"content"`
	Tags          []string             `json:"tags"`
	Relationships *model.Relationships `json:"relationships"`
}

type WriteResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

type UpdateResult struct {
	Success bool          `json:"success"`
	Memory  *model.Memory `json:"memory"`
}

type SearchResult struct {
	Total   int             `json:"total"`
	Results []*model.Memory `json:"results"`
}

type ListResult struct {
	Total    int             `json:"total"`
	Memories []*model.Memory `json:"memories"`
}

type InitResult struct {
	Success   bool   `json:"success"`
	ProjectID string `json:"projectId"`
}
