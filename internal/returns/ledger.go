package returns

// Keyed is implemented by every staged entry.
type Keyed interface {
	Key() string
}

// Ledger is an ordered staging list. Unique ledgers silently ignore a second
// entry with a key that is already staged.
type Ledger[T Keyed] struct {
	Entries []T  `json:"entries"`
	Unique  bool `json:"unique"`
}

// Stage appends item and reports whether it was added.
func (l *Ledger[T]) Stage(item T) bool {
	if l.Unique {
		if _, ok := l.Find(item.Key()); ok {
			return false
		}
	}
	l.Entries = append(l.Entries, item)
	return true
}

// Unstage removes the entry with the given key.
func (l *Ledger[T]) Unstage(key string) bool {
	for i, entry := range l.Entries {
		if entry.Key() == key {
			l.Entries = append(l.Entries[:i:i], l.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the entry with the given key.
func (l *Ledger[T]) Find(key string) (T, bool) {
	for _, entry := range l.Entries {
		if entry.Key() == key {
			return entry, true
		}
	}
	var zero T
	return zero, false
}

// Update applies fn to the entry with the given key in place.
func (l *Ledger[T]) Update(key string, fn func(*T)) bool {
	for i := range l.Entries {
		if l.Entries[i].Key() == key {
			fn(&l.Entries[i])
			return true
		}
	}
	return false
}

// List returns a copy of the entries in staging order.
func (l *Ledger[T]) List() []T {
	out := make([]T, len(l.Entries))
	copy(out, l.Entries)
	return out
}

// Len returns the number of staged entries.
func (l *Ledger[T]) Len() int {
	return len(l.Entries)
}

// Clear drops every entry.
func (l *Ledger[T]) Clear() {
	l.Entries = nil
}
