package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/uniassist/internal/domain/sessionModel"
)

// InMemorySessionStore keeps every session for the lifetime of the process.
type InMemorySessionStore struct {
	chatLock *sync.RWMutex
	chatMap  map[string][]sessionModel.Turn
}

func InitSessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		chatLock: new(sync.RWMutex),
		chatMap:  make(map[string][]sessionModel.Turn),
	}
}

func (store *InMemorySessionStore) GetOrCreate(ctx context.Context, sessionId string) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	if _, ok := store.chatMap[sessionId]; !ok {
		store.chatMap[sessionId] = make([]sessionModel.Turn, 0)
		inMemLogger.Debug("created session", "sessionId", sessionId)
	}
	return nil
}

func (store *InMemorySessionStore) Append(ctx context.Context, sessionId string, turns ...sessionModel.Turn) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	now := time.Now()
	for _, turn := range turns {
		if turn.At.IsZero() {
			turn.At = now
		}
		store.chatMap[sessionId] = append(store.chatMap[sessionId], turn)
	}
	return nil
}

// History returns a copy, callers may append to it freely.
func (store *InMemorySessionStore) History(ctx context.Context, sessionId string) ([]sessionModel.Turn, error) {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	turns := store.chatMap[sessionId]
	out := make([]sessionModel.Turn, len(turns))
	copy(out, turns)
	return out, nil
}
