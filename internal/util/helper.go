package util

// CloneSlice returns a copy of src that shares no storage with it.
func CloneSlice[T any](src []T) []T {
	clone := make([]T, len(src))
	copy(clone, src)

	return clone
}
