package internal

import "context"

// RecordStore is the durability collaborator. The engine loads everything it
// holds once at startup and hands it every mutation as it happens; batch
// variants let import and session cleanup land as one unit. Implementations
// serialize their own IO.
type RecordStore interface {
	Load(ctx context.Context) ([]*Memory, []Session, error)
	SaveMemory(ctx context.Context, mem *Memory) error
	SaveMemories(ctx context.Context, mems []*Memory) error
	DeleteMemory(ctx context.Context, id string) error
	DeleteMemories(ctx context.Context, ids []string) error
	SaveSession(ctx context.Context, s Session) error
	DeleteSession(ctx context.Context, name string) error
	Close() error
}

// NullStore persists nothing; an engine on top of it is purely in-memory.
type NullStore struct{}

var _ RecordStore = NullStore{}

func (NullStore) Load(context.Context) ([]*Memory, []Session, error) { return nil, nil, nil }
func (NullStore) SaveMemory(context.Context, *Memory) error          { return nil }
func (NullStore) SaveMemories(context.Context, []*Memory) error      { return nil }
func (NullStore) DeleteMemory(context.Context, string) error         { return nil }
func (NullStore) DeleteMemories(context.Context, []string) error     { return nil }
func (NullStore) SaveSession(context.Context, Session) error         { return nil }
func (NullStore) DeleteSession(context.Context, string) error        { return nil }
func (NullStore) Close() error                                       { return nil }
