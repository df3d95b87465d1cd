package flow

import "reflect"

// ShallowEqual compares two extracted data slices field by field: the key
// sets must match and each value must be equal under ValueEqual. This is
// what lets an extractor rebuild a fresh map each time without triggering
// downstream recomputation when the inner fields are unchanged.
func ShallowEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if !ValueEqual(av, bv) {
			return false
		}
	}
	return true
}

// SlicesEqual compares two extraction lists element-wise: same length,
// each element ShallowEqual.
func SlicesEqual(a, b []map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ShallowEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// ValueEqual compares two published field values. Comparable scalars use
// ==; composite values (maps, slices) are compared structurally, which in
// a store that hands out fresh copies is the equivalent of the identity
// check a reference-sharing runtime would make.
func ValueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
