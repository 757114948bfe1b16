package workflows

import "github.com/google/uuid"

// DeduplicateIDs drops repeated IDs, keeping the first occurrence. The
// result depends only on the input order, so it is safe inside workflow
// code. The input slice is not modified.
func DeduplicateIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	result := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
