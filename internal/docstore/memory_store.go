package docstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and as a dev fallback.
// Transactions buffer their writes and validate the version of every
// document they touched at commit time, so the first committer wins and
// later committers observe ErrWriteConflict exactly like the database-backed
// store.
type MemoryStore struct {
	mu    sync.Mutex
	colls map[string]map[string]memDoc
}

type memDoc struct {
	version int64
	data    []byte
}

type docKey struct {
	collection string
	id         string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{colls: make(map[string]map[string]memDoc)}
}

// WithTransaction runs fn against a buffering Tx and commits its writes
// atomically. A panic from fn leaves the store untouched because nothing is
// applied before commit.
func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memTx{
		store:  s,
		reads:  make(map[docKey]int64),
		writes: make(map[docKey]memWrite),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit(ctx)
}

// View returns a Tx that applies each operation immediately.
func (s *MemoryStore) View() Tx {
	return &memView{store: s, reads: make(map[docKey]int64)}
}

func (s *MemoryStore) coll(name string) map[string]memDoc {
	c, ok := s.colls[name]
	if !ok {
		c = make(map[string]memDoc)
		s.colls[name] = c
	}
	return c
}

// lookupLocked returns the current document and version, or version 0 when
// the document is absent. Caller holds s.mu.
func (s *MemoryStore) lookupLocked(k docKey) (memDoc, bool) {
	d, ok := s.coll(k.collection)[k.id]
	return d, ok
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

type memWrite struct {
	data    []byte
	deleted bool
}

// memTx is the buffering transaction: reads record observed versions, writes
// stay in the buffer until commit.
type memTx struct {
	store  *MemoryStore
	reads  map[docKey]int64
	writes map[docKey]memWrite
}

func (t *memTx) Get(ctx context.Context, collection, id string) (Doc, error) {
	if err := ctx.Err(); err != nil {
		return Doc{}, err
	}
	k := docKey{collection, id}
	if w, ok := t.writes[k]; ok {
		if w.deleted {
			return Doc{}, ErrNotFound
		}
		return Doc{ID: id, Version: t.reads[k], Data: cloneBytes(w.data)}, nil
	}

	t.store.mu.Lock()
	d, ok := t.store.lookupLocked(k)
	t.store.mu.Unlock()
	if !ok {
		// Absence is part of the read set: a document created by a
		// concurrent transaction invalidates this one.
		t.reads[k] = 0
		return Doc{}, ErrNotFound
	}
	t.noteRead(k, d.version)
	return Doc{ID: id, Version: d.version, Data: cloneBytes(d.data)}, nil
}

func (t *memTx) Find(ctx context.Context, collection, field string, value any) ([]Doc, error) {
	all, err := t.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	return filterByField(all, field, value)
}

func (t *memTx) List(ctx context.Context, collection string) ([]Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.store.mu.Lock()
	committed := t.store.coll(collection)
	docs := make([]Doc, 0, len(committed))
	for id, d := range committed {
		k := docKey{collection, id}
		if _, overridden := t.writes[k]; overridden {
			continue
		}
		t.noteRead(k, d.version)
		docs = append(docs, Doc{ID: id, Version: d.version, Data: cloneBytes(d.data)})
	}
	t.store.mu.Unlock()

	// Overlay this transaction's own uncommitted writes.
	for k, w := range t.writes {
		if k.collection != collection || w.deleted {
			continue
		}
		docs = append(docs, Doc{ID: k.id, Version: t.reads[k], Data: cloneBytes(w.data)})
	}
	sortDocsByID(docs)
	return docs, nil
}

func (t *memTx) Insert(ctx context.Context, collection string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	k := docKey{collection, id}
	t.reads[k] = 0
	t.writes[k] = memWrite{data: cloneBytes(data)}
	return id, nil
}

func (t *memTx) Replace(ctx context.Context, collection, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := docKey{collection, id}
	if w, ok := t.writes[k]; ok {
		if w.deleted {
			return ErrNotFound
		}
		t.writes[k] = memWrite{data: cloneBytes(data)}
		return nil
	}

	t.store.mu.Lock()
	d, ok := t.store.lookupLocked(k)
	t.store.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	t.noteRead(k, d.version)
	t.writes[k] = memWrite{data: cloneBytes(data)}
	return nil
}

func (t *memTx) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := docKey{collection, id}
	if w, ok := t.writes[k]; ok {
		if w.deleted {
			return ErrNotFound
		}
		t.writes[k] = memWrite{deleted: true}
		return nil
	}

	t.store.mu.Lock()
	d, ok := t.store.lookupLocked(k)
	t.store.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	t.noteRead(k, d.version)
	t.writes[k] = memWrite{deleted: true}
	return nil
}

// noteRead records the version observed for k. The first observation wins:
// validation must compare against what the transaction actually acted on.
func (t *memTx) noteRead(k docKey, version int64) {
	if _, seen := t.reads[k]; !seen {
		t.reads[k] = version
	}
}

// commit validates the read set against current state and applies the write
// buffer. Any touched document whose version moved fails the whole
// transaction with ErrWriteConflict.
func (t *memTx) commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for k, readVersion := range t.reads {
		d, ok := t.store.lookupLocked(k)
		current := int64(0)
		if ok {
			current = d.version
		}
		if current != readVersion {
			return ErrWriteConflict
		}
	}

	for k, w := range t.writes {
		coll := t.store.coll(k.collection)
		if w.deleted {
			delete(coll, k.id)
			continue
		}
		coll[k.id] = memDoc{version: t.reads[k] + 1, data: w.data}
	}
	return nil
}

// memView applies every operation immediately, validating versions against
// what this view has already read so a read-modify-write through one view
// still detects concurrent writers.
type memView struct {
	store *MemoryStore
	reads map[docKey]int64
}

func (v *memView) Get(ctx context.Context, collection, id string) (Doc, error) {
	if err := ctx.Err(); err != nil {
		return Doc{}, err
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	k := docKey{collection, id}
	d, ok := v.store.lookupLocked(k)
	if !ok {
		return Doc{}, ErrNotFound
	}
	v.reads[k] = d.version
	return Doc{ID: id, Version: d.version, Data: cloneBytes(d.data)}, nil
}

func (v *memView) Find(ctx context.Context, collection, field string, value any) ([]Doc, error) {
	all, err := v.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	return filterByField(all, field, value)
}

func (v *memView) List(ctx context.Context, collection string) ([]Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	committed := v.store.coll(collection)
	docs := make([]Doc, 0, len(committed))
	for id, d := range committed {
		docs = append(docs, Doc{ID: id, Version: d.version, Data: cloneBytes(d.data)})
	}
	sortDocsByID(docs)
	return docs, nil
}

func (v *memView) Insert(ctx context.Context, collection string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	id := uuid.NewString()
	v.store.coll(collection)[id] = memDoc{version: 1, data: cloneBytes(data)}
	return id, nil
}

func (v *memView) Replace(ctx context.Context, collection, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	k := docKey{collection, id}
	d, ok := v.store.lookupLocked(k)
	if !ok {
		return ErrNotFound
	}
	if readVersion, seen := v.reads[k]; seen && readVersion != d.version {
		return ErrWriteConflict
	}
	v.store.coll(collection)[id] = memDoc{version: d.version + 1, data: cloneBytes(data)}
	v.reads[k] = d.version + 1
	return nil
}

func (v *memView) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	k := docKey{collection, id}
	d, ok := v.store.lookupLocked(k)
	if !ok {
		return ErrNotFound
	}
	if readVersion, seen := v.reads[k]; seen && readVersion != d.version {
		return ErrWriteConflict
	}
	delete(v.store.coll(collection), id)
	return nil
}
