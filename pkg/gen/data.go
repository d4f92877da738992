package gen

// CopySlice returns a shallow copy of src (nil stays nil)
func CopySlice[T any](src []T) []T {
	if src == nil {
		return nil
	}
	dst := make([]T, len(src))
	copy(dst, src)
	return dst
}

// DeleteIndex removes the element at index i, preserving order.
// If i is out of range, the slice is returned unchanged.
func DeleteIndex[T any](s []T, i int) []T {
	if i < 0 || i >= len(s) {
		return s
	}
	return append(s[:i], s[i+1:]...)
}

// DrainChannelIntoSlice takes whatever is buffered in ch without blocking.
// Useful for collecting the events a subscriber has accumulated.
func DrainChannelIntoSlice[T any](ch chan T) []T {
	out := make([]T, 0, len(ch))
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}
