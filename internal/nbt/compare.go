package nbt

import "reflect"

// lastUpdateKey is the only domain-specific rule in this package:
// Minecraft rewrites it on every chunk save even when nothing else
// changed, so chunk-equality checks must ignore it.
const lastUpdateKey = "LastUpdate"

// Equal reports whether two parsed NBT values are structurally identical.
// Leaf values ([]byte) compare by exact byte content; containers compare
// recursively.
func Equal(left, right RawValue) bool {
	return reflect.DeepEqual(left, right)
}

// withoutLastUpdate returns a shallow copy of compound with the top-level
// LastUpdate key removed, leaving the input untouched.
func withoutLastUpdate(compound map[string]RawValue) map[string]RawValue {
	if _, ok := compound[lastUpdateKey]; !ok {
		return compound
	}
	cp := make(map[string]RawValue, len(compound)-1)
	for k, v := range compound {
		if k == lastUpdateKey {
			continue
		}
		cp[k] = v
	}
	return cp
}

// CompareChunk compares two chunk compounds for equality, treating
// LastUpdate as insignificant: the key is removed from both sides before
// a deep structural comparison, so two chunks that differ only in when
// they were last saved compare equal. See DESIGN.md for why this
// symmetric delete-from-both convention was chosen.
func CompareChunk(left, right map[string]RawValue) bool {
	return Equal(withoutLastUpdate(left), withoutLastUpdate(right))
}

// Compare implements compare_nbt(left, right, treat_as_chunk) against raw
// serialized NBT blobs, parsing each side and attributing parse failures
// via Error.Side.
func Compare(left, right []byte, treatAsChunk bool) (bool, error) {
	l, err := Parse(left, LeftBlob)
	if err != nil {
		return false, err
	}
	r, err := Parse(right, RightBlob)
	if err != nil {
		return false, err
	}
	if treatAsChunk {
		return CompareChunk(l, r), nil
	}
	return Equal(l, r), nil
}

// Diff returns the top-level compound keys at which left and right
// disagree (present in only one side, or present in both with different
// values), in no particular order. This is a diagnostic supplement; no
// equality check in this module calls it.
func Diff(left, right map[string]RawValue) []string {
	seen := make(map[string]struct{}, len(left)+len(right))
	var keys []string
	for k := range left {
		seen[k] = struct{}{}
	}
	for k := range right {
		seen[k] = struct{}{}
	}
	for k := range seen {
		lv, lok := left[k]
		rv, rok := right[k]
		if lok != rok || !Equal(lv, rv) {
			keys = append(keys, k)
		}
	}
	return keys
}
