package model

// Take returns the first n elements of s, or all of s if it is shorter.
// A non-positive n means no bound.
func Take[T any](s []T, n int) []T {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[:n]
}
