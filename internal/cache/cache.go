// Package cache implements spec.md §3/§4.6's TranslationRec and
// SourceRecord, the per-source-key translation cache, and the
// offline translation-cache dump format described in spec.md §6.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/sourcekey"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/tlerr"
)

// TranslationRec is one compiled translation of a tracelet: its native
// code range plus the bookkeeping the dispatcher and unwinder need.
type TranslationRec struct {
	ID   uint64
	Key  sourcekey.SourceKey
	Code []byte // native code range in the code cache.
	// StackPointerCeil is the maximum tracked stack depth this
	// translation reaches. It is stored and written to dumps; the
	// prologue's stack-overflow sizing (internal/prologue) does not read
	// it.
	StackPointerCeil uint64

	mu sync.Mutex
	// incoming records every smashable site that currently jumps into
	// this translation, so BIND_JMP/BIND_ADDR can be idempotent
	// (spec.md §8 property 7: "no duplicate incoming-branch entries
	// accumulate").
	incoming map[uintptr]struct{}
}

// AddIncoming records site as a smashable branch into t, returning false
// if it was already recorded (spec.md §8 property 7's idempotence
// requirement).
func (t *TranslationRec) AddIncoming(site uintptr) (added bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.incoming == nil {
		t.incoming = map[uintptr]struct{}{}
	}
	if _, ok := t.incoming[site]; ok {
		return false
	}
	t.incoming[site] = struct{}{}
	return true
}

// IncomingSites returns a snapshot of every smashable site currently
// bound to t.
func (t *TranslationRec) IncomingSites() []uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]uintptr, 0, len(t.incoming))
	for s := range t.incoming {
		out = append(out, s)
	}
	return out
}

// SourceRecord is spec.md §3's per-SourceKey translation history: every
// translation produced for this key, a published "top" translation
// pointer for wait-free reads (spec.md §5: "reading the source-key
// database via a published top-translation pointer... is wait-free"),
// and the translation-limit counter (spec.md §4.6).
type SourceRecord struct {
	Key sourcekey.SourceKey

	mu           sync.RWMutex
	translations []*TranslationRec
	top          atomic.Pointer[TranslationRec]

	// MaxTranslations bounds how many translations this key may
	// accumulate (spec.md §4.6's "translation limit per source key");
	// beyond it, Cache.Publish returns ErrTranslationLimitExceeded and
	// the caller must route to a generic interpret-one-basic-block
	// request instead.
	MaxTranslations int
}

// Top returns the currently published top translation, or nil if none
// exists yet. Wait-free: no lock is taken.
func (r *SourceRecord) Top() *TranslationRec {
	return r.top.Load()
}

// Translations returns a snapshot of every translation produced for this
// key so far.
func (r *SourceRecord) Translations() []*TranslationRec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*TranslationRec, len(r.translations))
	copy(out, r.translations)
	return out
}

// publish appends rec and republishes it as top. Must be called while
// holding the Cache's write lease (spec.md §5): all mutation of the
// source-key database requires it.
func (r *SourceRecord) publish(rec *TranslationRec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.MaxTranslations > 0 && len(r.translations) >= r.MaxTranslations {
		return tlerr.ErrTranslationLimitExceeded
	}
	r.translations = append(r.translations, rec)
	r.top.Store(rec)
	return nil
}

// DefaultMaxTranslations matches spec.md §4.6's rationale: bound code
// bloat under pathological type polymorphism while still tolerating the
// common two-or-three-shape polymorphic call site (spec.md §8 scenario
// 2).
const DefaultMaxTranslations = 8

// Cache is the process-wide translation cache: every SourceRecord,
// keyed by its SourceKey, plus a monotonic id counter for new
// TranslationRecs. All mutating methods assume the caller already holds
// the write lease (internal/engine); Lookup/Top are wait-free.
type Cache struct {
	mu      sync.RWMutex
	records map[sourcekey.SourceKey]*SourceRecord
	nextID  uint64
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{records: map[sourcekey.SourceKey]*SourceRecord{}}
}

// RecordFor returns the SourceRecord for key, creating it (with
// DefaultMaxTranslations) if this is the first time key is seen.
func (c *Cache) RecordFor(key sourcekey.SourceKey) *SourceRecord {
	c.mu.RLock()
	r, ok := c.records[key]
	c.mu.RUnlock()
	if ok {
		return r
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.records[key]; ok {
		return r
	}
	r = &SourceRecord{Key: key, MaxTranslations: DefaultMaxTranslations}
	c.records[key] = r
	return r
}

// Publish installs code as a new TranslationRec for key and republishes
// it as that key's top translation. Returns ErrTranslationLimitExceeded
// if key's SourceRecord has already reached its cap.
func (c *Cache) Publish(key sourcekey.SourceKey, code []byte, stackPointerCeil uint64) (*TranslationRec, error) {
	r := c.RecordFor(key)
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.mu.Unlock()

	rec := &TranslationRec{ID: id, Key: key, Code: code, StackPointerCeil: stackPointerCeil}
	if err := r.publish(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Lookup returns key's currently published top translation, wait-free,
// without creating a SourceRecord if none exists.
func (c *Cache) Lookup(key sourcekey.SourceKey) (*TranslationRec, bool) {
	c.mu.RLock()
	r, ok := c.records[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if top := r.Top(); top != nil {
		return top, true
	}
	return nil, false
}
