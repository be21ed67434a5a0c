package service

import (
	"context"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/repository"

	"github.com/google/uuid"
)

// collectThread returns roots plus every transitive reply, walking the
// parent links breadth first. Each id appears once even if the stored
// graph contains a cycle.
func collectThread(ctx context.Context, q db.DBTX, comments repository.CommentRepository, roots []uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{}, len(roots))
	all := make([]uuid.UUID, 0, len(roots))
	frontier := make([]uuid.UUID, 0, len(roots))

	for _, id := range roots {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		all = append(all, id)
		frontier = append(frontier, id)
	}

	for len(frontier) > 0 {
		children, err := comments.ListChildIDs(ctx, q, frontier)
		if err != nil {
			return nil, err
		}

		var next []uuid.UUID
		for _, id := range children {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			all = append(all, id)
			next = append(next, id)
		}
		frontier = next
	}

	return all, nil
}
