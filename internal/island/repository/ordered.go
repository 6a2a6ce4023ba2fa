package repository

import "sync"

// ordered is a map that remembers first-insertion order.
type ordered[K comparable, V any] struct {
	mu    sync.RWMutex
	keys  []K
	items map[K]V
	clone func(V) V
}

func newOrdered[K comparable, V any](clone func(V) V) *ordered[K, V] {
	return &ordered[K, V]{
		items: make(map[K]V),
		clone: clone,
	}
}

func (o *ordered[K, V]) put(k K, v V) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.items[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.items[k] = o.clone(v)
}

func (o *ordered[K, V]) get(k K) (V, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	v, ok := o.items[k]
	if !ok {
		return v, false
	}
	return o.clone(v), true
}

func (o *ordered[K, V]) list() []V {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]V, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, o.clone(o.items[k]))
	}
	return out
}

// retain drops every entry for which keep returns false.
func (o *ordered[K, V]) retain(keep func(V) bool) {
	o.swap(keep, nil, nil)
}

// swap drops every entry for which keep returns false, then puts vals under
// keys, in one critical section.
func (o *ordered[K, V]) swap(keep func(V) bool, keys []K, vals []V) {
	o.mu.Lock()
	defer o.mu.Unlock()

	kept := o.keys[:0]
	for _, k := range o.keys {
		if keep(o.items[k]) {
			kept = append(kept, k)
			continue
		}
		delete(o.items, k)
	}
	o.keys = kept

	for i, k := range keys {
		if _, ok := o.items[k]; !ok {
			o.keys = append(o.keys, k)
		}
		o.items[k] = o.clone(vals[i])
	}
}
