// Package archive implements the durable-storage collaborator: live
// session snapshots upserted by id and an append-only history of
// ended sessions. The engine treats it as a shadow copy; nothing in
// here may fail an in-memory operation.
package archive

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/astrolune/star/internal/domain"
)

const (
	sessionKeyPrefix = "session:"
	historyKeyPrefix = "history:"
)

// BadgerArchive stores snapshots and history rows in an embedded
// BadgerDB, so a single-process deployment keeps recovery data
// without an external database.
type BadgerArchive struct {
	db *badger.DB
}

// Open opens (or creates) the archive database at dir.
func Open(dir string) (*BadgerArchive, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	return &BadgerArchive{db: db}, nil
}

func NewBadgerArchive(db *badger.DB) *BadgerArchive {
	return &BadgerArchive{db: db}
}

func (a *BadgerArchive) Close() error {
	return a.db.Close()
}

// SaveSession upserts the full live snapshot of a session.
func (a *BadgerArchive) SaveSession(ctx context.Context, id domain.SessionID, doc []byte) error {
	key := []byte(sessionKeyPrefix + string(id))
	err := a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, doc)
	})
	if err != nil {
		return fmt.Errorf("set session snapshot: %w", err)
	}
	return nil
}

// SaveHistory appends one history row for an ended session. The key
// embeds the end timestamp so repeated runs never collide.
func (a *BadgerArchive) SaveHistory(ctx context.Context, rec *domain.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}
	key := []byte(historyKeyPrefix + string(rec.SessionID) + ":" + strconv.FormatInt(rec.EndedAt.UnixNano(), 10))
	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("set history record: %w", err)
	}
	return nil
}
