package archive

import (
	"context"

	"github.com/astrolune/star/internal/domain"
)

// Nop discards everything. Used when persistence is disabled in
// config; sessions are ephemeral by nature and survive fine without
// a shadow copy.
type Nop struct{}

func (Nop) SaveSession(ctx context.Context, id domain.SessionID, doc []byte) error {
	return nil
}

func (Nop) SaveHistory(ctx context.Context, rec *domain.SessionRecord) error {
	return nil
}
