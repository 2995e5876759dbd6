package testutil

import (
	"testing"

	"acl-go/internal/acl"
	"acl-go/internal/archive"
	"acl-go/internal/database"
)

// Env bundles a Service with the collaborators tests poke at directly.
type Env struct {
	DB      *database.SQLiteDatabase
	Store   acl.Store // what the service writes through; DB unless replaced
	Clock   *StubClock
	IDs     *StubIDGenerator
	Archive *archive.MemoryArchive
	Service *acl.Service
}

// NewTestEnv wires a Service over an in-memory database, a fixed clock and a
// memory archive.
func NewTestEnv(t *testing.T) *Env {
	t.Helper()
	return NewTestEnvWithStore(t, nil, acl.Options{})
}

// NewTestEnvWithStore lets a test interpose on the store. wrap receives the
// database and returns the store the service uses; nil means no wrapper.
func NewTestEnvWithStore(t *testing.T, wrap func(acl.Store) acl.Store, opts acl.Options) *Env {
	t.Helper()

	db := NewTestDatabase(t)
	env := &Env{
		DB:      db,
		Store:   db,
		Clock:   FixedClock(),
		IDs:     NewStubIDGenerator("id"),
		Archive: NewTestArchive(),
	}
	if wrap != nil {
		env.Store = wrap(db)
	}
	env.Service = acl.NewService(env.Store, db, env.Archive, acl.NewNopLogger(), env.Clock, env.IDs, opts)
	return env
}

// NewTestArchive returns an empty memory archive.
func NewTestArchive() *archive.MemoryArchive {
	return archive.NewMemoryArchive("test")
}
