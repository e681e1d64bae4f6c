package filestore

import (
	"sort"
	"strings"
	"sync"
)

// Overlay is an in-memory Store that reads through to a base Store but
// buffers writes and deletes locally until Commit is called. It implements
// the "test phase" of the attempt-continue protocol (spec §4.6): a
// speculative event can be projected into an Overlay, a full restore
// attempted against it, and only on success are its writes copied to the
// real store.
type Overlay struct {
	base Store

	mu      sync.Mutex
	writes  map[string][]byte
	deleted map[string]bool
}

// NewOverlay wraps base in a fresh Overlay with no pending writes.
func NewOverlay(base Store) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

func (o *Overlay) ReadBlob(key string) ([]byte, error) {
	o.mu.Lock()
	if o.deleted[key] {
		o.mu.Unlock()
		return nil, ErrNotFound
	}
	if data, ok := o.writes[key]; ok {
		o.mu.Unlock()
		return data, nil
	}
	o.mu.Unlock()
	return o.base.ReadBlob(key)
}

func (o *Overlay) WriteBlob(key string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)

	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.deleted, key)
	o.writes[key] = cp
	return nil
}

func (o *Overlay) Exists(key string) (bool, error) {
	o.mu.Lock()
	if o.deleted[key] {
		o.mu.Unlock()
		return false, nil
	}
	if _, ok := o.writes[key]; ok {
		o.mu.Unlock()
		return true, nil
	}
	o.mu.Unlock()
	return o.base.Exists(key)
}

func (o *Overlay) ListKeys(prefix string) ([]string, error) {
	baseKeys, err := o.base.ListKeys(prefix)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	set := make(map[string]bool, len(baseKeys))
	for _, k := range baseKeys {
		if !o.deleted[k] {
			set[k] = true
		}
	}
	for k := range o.writes {
		if strings.HasPrefix(k, prefix) {
			set[k] = true
		}
	}

	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (o *Overlay) DeleteBlob(key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.writes, key)
	o.deleted[key] = true
	return nil
}

// Commit copies every pending write and delete to the overlay's base store,
// in the order they were applied by value alone (deletes then writes is not
// significant here since each key is either deleted or written, never
// both — WriteBlob clears any pending delete for the same key).
func (o *Overlay) Commit() error {
	o.mu.Lock()
	writes := make(map[string][]byte, len(o.writes))
	for k, v := range o.writes {
		writes[k] = v
	}
	deleted := make(map[string]bool, len(o.deleted))
	for k := range o.deleted {
		deleted[k] = true
	}
	o.mu.Unlock()

	for k := range deleted {
		if err := o.base.DeleteBlob(k); err != nil {
			return err
		}
	}
	for k, v := range writes {
		if err := o.base.WriteBlob(k, v); err != nil {
			return err
		}
	}
	return nil
}
