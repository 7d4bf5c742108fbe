package engine

// Ordered is a map that remembers first-insertion order. Overwriting a key
// keeps its original position.
type Ordered[T any] struct {
	keys   []string
	values map[string]T
}

// NewOrdered creates an empty ordered map.
func NewOrdered[T any]() *Ordered[T] {
	return &Ordered[T]{values: make(map[string]T)}
}

// Set stores value under key.
func (o *Ordered[T]) Set(key string, value T) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value stored under key.
func (o *Ordered[T]) Get(key string) (T, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Ordered[T]) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Delete removes key.
func (o *Ordered[T]) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (o *Ordered[T]) Keys() []string {
	return append([]string(nil), o.keys...)
}

// Len returns the number of entries.
func (o *Ordered[T]) Len() int {
	return len(o.keys)
}
