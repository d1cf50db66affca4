package idb

// KeyRange is a bounded interval over keys used to filter lookups, deletes
// and cursors. Either bound may be absent; each present bound is
// independently open or closed.
type KeyRange struct {
	Lower     any
	Upper     any
	LowerOpen bool
	UpperOpen bool
}

// Only returns a range containing exactly key.
func Only(key any) (*KeyRange, error) {
	k, ok := canonicalKey(key)
	if !ok {
		return nil, dataErrf("invalid key %T %v", key, key)
	}
	return &KeyRange{Lower: k, Upper: k}, nil
}

// LowerBound returns a range of all keys ≥ key (or > key when open).
func LowerBound(key any, open bool) (*KeyRange, error) {
	k, ok := canonicalKey(key)
	if !ok {
		return nil, dataErrf("invalid lower bound %T %v", key, key)
	}
	return &KeyRange{Lower: k, LowerOpen: open}, nil
}

// UpperBound returns a range of all keys ≤ key (or < key when open).
func UpperBound(key any, open bool) (*KeyRange, error) {
	k, ok := canonicalKey(key)
	if !ok {
		return nil, dataErrf("invalid upper bound %T %v", key, key)
	}
	return &KeyRange{Upper: k, UpperOpen: open}, nil
}

// Bound returns a range between lower and upper. Fails if lower > upper, or
// if the bounds are equal and either end is open.
func Bound(lower, upper any, lowerOpen, upperOpen bool) (*KeyRange, error) {
	l, ok := canonicalKey(lower)
	if !ok {
		return nil, dataErrf("invalid lower bound %T %v", lower, lower)
	}
	u, ok := canonicalKey(upper)
	if !ok {
		return nil, dataErrf("invalid upper bound %T %v", upper, upper)
	}
	cmp := compareCanonical(l, u)
	if cmp > 0 {
		return nil, dataErrf("lower bound is greater than upper bound")
	}
	if cmp == 0 && (lowerOpen || upperOpen) {
		return nil, dataErrf("empty range: equal bounds with an open end")
	}
	return &KeyRange{Lower: l, Upper: u, LowerOpen: lowerOpen, UpperOpen: upperOpen}, nil
}

// Contains reports whether key falls within the range.
func (r *KeyRange) Contains(key any) bool {
	k, ok := canonicalKey(key)
	if !ok {
		return false
	}
	if lower := r.Lower; lower != nil {
		cmp := compareCanonical(k, lower)
		if cmp < 0 || (cmp == 0 && r.LowerOpen) {
			return false
		}
	}
	if upper := r.Upper; upper != nil {
		cmp := compareCanonical(k, upper)
		if cmp > 0 || (cmp == 0 && r.UpperOpen) {
			return false
		}
	}
	return true
}
