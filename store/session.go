package store

import "context"

// SessionStore persists Record values keyed by client id — the durable half
// of persistent_sessions (spec §4.6). A MemoryStore[Record], PebbleStore[Record]
// or RedisStore[Record] all satisfy it unmodified.
type SessionStore = Store[Record]

// Touch loads a record, applies fn, and saves it back. Returns ErrNotFound
// unchanged if no record exists yet for clientID.
func Touch(ctx context.Context, s SessionStore, clientID string, fn func(*Record)) error {
	rec, err := s.Load(ctx, clientID)
	if err != nil {
		return err
	}
	fn(&rec)
	return s.Save(ctx, clientID, rec)
}
