package store

import (
	"context"

	"github.com/alucardeht/membank/internal/model"
)

// Stats holds per-project storage statistics.
type Stats struct {
	TotalMemories int                      `json:"totalMemories"`
	ByType        map[model.MemoryType]int `json:"byType"`
	SizeBytes     int64                    `json:"sizeBytes"`
}

// GetStats counts indexed records, groups them by type and sums the
// serialized document sizes as an approximate footprint.
func (s *Store) GetStats(ctx context.Context, projectID string) (*Stats, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	st := &Stats{ByType: make(map[model.MemoryType]int)}

	if err := p.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(r.doc)), 0) FROM project_keys k JOIN records r ON r.key = k.key",
	).Scan(&st.TotalMemories, &st.SizeBytes); err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx,
		"SELECT json_extract(r.doc, '$.type'), COUNT(*) FROM project_keys k JOIN records r ON r.key = k.key GROUP BY 1",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var memType string
		var count int
		if err := rows.Scan(&memType, &count); err != nil {
			return nil, err
		}
		st.ByType[model.MemoryType(memType)] = count
	}

	return st, rows.Err()
}
