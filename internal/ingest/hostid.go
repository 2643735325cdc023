package ingest

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/noiseless47/optilab-collector/internal/store"
)

// parseHostID decodes the string form of a HostID carried in a bus message
// (spec.md §6: metrics carry system_id).
func parseHostID(s string) (store.HostID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return store.NilHostID, fmt.Errorf("parse host id %q: %w", s, err)
	}
	return store.HostID(id), nil
}
