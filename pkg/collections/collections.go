// Package collections holds small generic slice helpers.
package collections

// Apply applies the applicator function to each item in the input slice.
func Apply[T, V any](items []T, applicator func(T) V) []V {
	result := make([]V, len(items))
	for i, item := range items {
		result[i] = applicator(item)
	}

	return result
}

// Filter returns the items keep accepts, in order. The input is not
// modified.
func Filter[T any](items []T, keep func(T) bool) []T {
	var result []T

	for _, item := range items {
		if keep(item) {
			result = append(result, item)
		}
	}

	return result
}

// FilterApply maps the items keep accepts.
func FilterApply[T, V any](items []T, keep func(T) bool, applicator func(T) V) []V {
	return Apply(Filter(items, keep), applicator)
}
