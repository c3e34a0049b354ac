package infra

type Signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// Unsigned is a constraint that permits any unsigned integer type.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

type Integer interface {
	Signed | Unsigned
}

type Float interface {
	~float32 | ~float64
}

// OrderedKey
// byte => ~uint8
type OrderedKey interface {
	Integer | Float | ~string
}

// Comparator is the total order injected into ordered containers.
// Assume i is the new element.
//  1. i == j (return 0), hit.
//  2. i > j (return positive), turn to right part.
//  3. i < j (return negative), turn to left part.
//
// It must be deterministic and a total order over every element that
// ever meets the container. Nothing checks that at runtime.
type Comparator[E any] func(i, j E) int64

// OrderedKeyComparator builds the natural ascending order of K.
func OrderedKeyComparator[K OrderedKey]() Comparator[K] {
	return func(i, j K) int64 {
		if i == j {
			return 0
		} else if i < j {
			return -1
		}
		return 1
	}
}

// Reverse flips the direction of cmp.
func (cmp Comparator[E]) Reverse() Comparator[E] {
	return func(i, j E) int64 {
		return cmp(j, i)
	}
}

// PointerComparator orders pointers by the elements they reference. The
// pointers are never dereferenced outside of elemCmp, so nil handling is
// up to the caller.
func PointerComparator[E any](elemCmp Comparator[E]) Comparator[*E] {
	return func(i, j *E) int64 {
		return elemCmp(*i, *j)
	}
}
