package collections

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBuckets(t *testing.T) {
	words := []string{"apple", "avocado", "banana", "blueberry", "cherry", "apricot"}
	buckets := Buckets(words, func(_ int, w string) (byte, string) {
		return w[0], strings.ToUpper(w)
	})

	require.Equal(t, []Bucket[byte, string]{
		{Key: 'a', Items: []string{"APPLE", "AVOCADO", "APRICOT"}},
		{Key: 'b', Items: []string{"BANANA", "BLUEBERRY"}},
		{Key: 'c', Items: []string{"CHERRY"}},
	}, buckets)
}

func TestBuckets_Index(t *testing.T) {
	buckets := Buckets([]string{"x", "y", "z", "w"}, func(i int, s string) (bool, int) {
		return i%2 == 0, i
	})
	require.Equal(t, []Bucket[bool, int]{
		{Key: true, Items: []int{0, 2}},
		{Key: false, Items: []int{1, 3}},
	}, buckets)
}

func TestBuckets_Empty(t *testing.T) {
	require.Empty(t, Buckets([]int(nil), func(_ int, v int) (int, int) { return v, v }))
}

func TestReduce(t *testing.T) {
	buckets := Buckets([]int{1, 2, 3, 4, 5, 6}, func(_ int, v int) (string, int) {
		if v%2 == 0 {
			return "even", v
		}
		return "odd", v
	})
	sums := Reduce(buckets, func(items []int) int {
		total := 0
		for _, v := range items {
			total += v
		}
		return total
	})
	require.Equal(t, map[string]int{"even": 12, "odd": 9}, sums)
}

func TestUnbucket_Roundtrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOf(rapid.IntRange(-50, 50)).Draw(t, "values")
		mod := rapid.IntRange(1, 7).Draw(t, "mod")

		buckets := Buckets(values, func(_ int, v int) (int, int) {
			return ((v % mod) + mod) % mod, v
		})

		total := 0
		seen := map[int]bool{}
		for _, b := range buckets {
			require.False(t, seen[b.Key], "keys are unique")
			seen[b.Key] = true
			require.NotEmpty(t, b.Items)
			total += len(b.Items)
		}
		require.Len(t, values, total)

		// unbucketing yields every value once, grouped by key
		pairs := Unbucket(buckets)
		require.Len(t, pairs, len(values))
		counts := map[int]int{}
		for _, v := range values {
			counts[v]++
		}
		for _, p := range pairs {
			require.Equal(t, ((p.Value%mod)+mod)%mod, p.Key)
			counts[p.Value]--
		}
		for _, c := range counts {
			require.Zero(t, c)
		}
	})
}
