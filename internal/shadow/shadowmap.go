package shadow

import (
	"fmt"
	"sync"

	"shadowgen/internal/meta"
)

// EntryKind distinguishes forwarding shadows from plain enum copies.
type EntryKind uint8

const (
	EntryForward EntryKind = iota + 1
	EntryEnum
)

// Entry links an original definition (source module) to the definitions
// generated for it (target module).
type Entry struct {
	Kind     EntryKind
	Original meta.DefID
	Shadow   meta.DefID
	// Key is the structural name of the shadow: shadow namespace, original
	// short name and original arity.
	Key string

	// Holder is the accessor getter exposing the held original instance.
	// Set for interface and abstract shadows only.
	Holder     meta.MethodID
	HolderProp meta.PropertyID
	HolderName string

	ForwardField meta.FieldID
	ForwardCtor  meta.MethodID

	// FakeImpl is the concrete class wrapping instances whose static type is
	// the (interface or abstract) original.
	FakeImpl     meta.DefID
	FakeImplCtor meta.MethodID
	FakeImplHeld meta.FieldID
}

// NeedsFakeImpl reports whether wrapping requires the fake implementation.
func (e *Entry) NeedsFakeImpl() bool { return e.Holder != meta.NoMethod }

// ShadowMap is the single piece of mutable state shared between passes. It is
// written during pass 1 and sealed before pass 2 reads it.
type ShadowMap struct {
	mu       sync.RWMutex
	entries  []Entry
	byOrig   map[meta.DefID]int
	byShadow map[meta.DefID]int
	byKey    map[string]int
	sealed   bool
}

// NewShadowMap creates an empty, open map.
func NewShadowMap() *ShadowMap {
	return &ShadowMap{
		byOrig:   make(map[meta.DefID]int),
		byShadow: make(map[meta.DefID]int),
		byKey:    make(map[string]int),
	}
}

// Register records a new original->shadow link.
func (sm *ShadowMap) Register(e Entry) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.sealed {
		return fmt.Errorf("register %s: %w", e.Key, ErrShadowMapSealed)
	}
	if _, dup := sm.byOrig[e.Original]; dup {
		return fmt.Errorf("register %s: original %d already has a shadow", e.Key, e.Original)
	}
	if _, dup := sm.byKey[e.Key]; dup {
		return fmt.Errorf("register %s: shadow name already taken", e.Key)
	}
	idx := len(sm.entries)
	sm.entries = append(sm.entries, e)
	sm.byOrig[e.Original] = idx
	sm.byShadow[e.Shadow] = idx
	sm.byKey[e.Key] = idx
	return nil
}

// update mutates a registered entry during pass 1.
func (sm *ShadowMap) update(orig meta.DefID, fn func(*Entry)) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.sealed {
		return ErrShadowMapSealed
	}
	idx, ok := sm.byOrig[orig]
	if !ok {
		return fmt.Errorf("update: original %d has no shadow", orig)
	}
	fn(&sm.entries[idx])
	if e := &sm.entries[idx]; e.FakeImpl != meta.NoDef {
		sm.byShadow[e.FakeImpl] = idx
	}
	return nil
}

// Seal ends pass 1. Further registrations fail.
func (sm *ShadowMap) Seal() {
	sm.mu.Lock()
	sm.sealed = true
	sm.mu.Unlock()
}

// Sealed reports whether pass 1 has completed.
func (sm *ShadowMap) Sealed() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sealed
}

// Lookup finds the entry for an original definition.
func (sm *ShadowMap) Lookup(orig meta.DefID) (Entry, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	idx, ok := sm.byOrig[orig]
	if !ok {
		return Entry{}, false
	}
	return sm.entries[idx], true
}

// LookupKey finds an entry by structural shadow name.
func (sm *ShadowMap) LookupKey(key string) (Entry, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	idx, ok := sm.byKey[key]
	if !ok {
		return Entry{}, false
	}
	return sm.entries[idx], true
}

// LookupShadow finds the entry owning a generated definition (shadow or
// fake implementation).
func (sm *ShadowMap) LookupShadow(def meta.DefID) (Entry, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	idx, ok := sm.byShadow[def]
	if !ok {
		return Entry{}, false
	}
	return sm.entries[idx], true
}

// Len is the number of registered entries.
func (sm *ShadowMap) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.entries)
}

// Entries returns a copy of all entries in registration order.
func (sm *ShadowMap) Entries() []Entry {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return append([]Entry(nil), sm.entries...)
}

// Pairs returns original->shadow links for forwarding entries.
func (sm *ShadowMap) Pairs() map[meta.DefID]meta.DefID {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make(map[meta.DefID]meta.DefID, len(sm.entries))
	for _, e := range sm.entries {
		if e.Kind == EntryForward {
			out[e.Original] = e.Shadow
		}
	}
	return out
}
