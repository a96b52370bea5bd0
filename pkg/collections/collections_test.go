package collections_test

import (
	"testing"

	"github.com/alkime/practice/pkg/collections"

	"github.com/stretchr/testify/require"
)

type take struct {
	ID      string
	Pending bool
}

func TestApply(t *testing.T) {
	t.Parallel()

	squared := collections.Apply([]int{1, 2, 3, 4}, func(i int) int {
		return i * i
	})
	require.Equal(t, []int{1, 4, 9, 16}, squared)

	ids := collections.Apply([]take{{ID: "a"}, {ID: "b"}}, func(tk take) string { return tk.ID })
	require.Equal(t, []string{"a", "b"}, ids)

	require.Empty(t, collections.Apply(nil, func(tk take) string { return tk.ID }))
}

func TestFilter(t *testing.T) {
	t.Parallel()

	takes := []take{{ID: "a", Pending: true}, {ID: "b"}, {ID: "c", Pending: true}}

	pending := collections.Filter(takes, func(tk take) bool { return tk.Pending })
	require.Equal(t, []take{{ID: "a", Pending: true}, {ID: "c", Pending: true}}, pending)
	require.Len(t, takes, 3, "input untouched")

	require.Nil(t, collections.Filter(takes, func(take) bool { return false }))
}

func TestFilterApply(t *testing.T) {
	t.Parallel()

	takes := []take{{ID: "a", Pending: true}, {ID: "b"}, {ID: "c", Pending: true}}

	ids := collections.FilterApply(takes,
		func(tk take) bool { return tk.Pending },
		func(tk take) string { return tk.ID })
	require.Equal(t, []string{"a", "c"}, ids)
}
