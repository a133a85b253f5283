package common

import "unsafe"

// Coalesce picks the first value that is not the zero value of T. Labels fall back to a type name this way.
//
// Parameters:
//   - values: candidates in order of preference
//
// Returns:
//   - T: the first non-zero candidate, the zero value when there is none
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// SliceToBytes reinterprets a slice of plain values as the bytes of a vertex, index or texel upload.
// The result aliases data and must not outlive or modify it.
//
// Parameters:
//   - data: the values, which must not contain pointers
//
// Returns:
//   - []byte: the aliased bytes, nil for an empty slice
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(unsafe.Sizeof(zero))*len(data))
}
