// Package collections provides helpers to group arbitrary collections.
package collections

// Bucket holds the values collected for one key.
type Bucket[K comparable, V any] struct {
	Key   K
	Items []V
}

// Buckets sorts the elements of col into buckets. fn receives the index
// and the element and returns the bucket key and the value to store.
// Buckets are returned in order of the first appearance of their key.
func Buckets[A any, K comparable, V any](col []A, fn func(int, A) (K, V)) []Bucket[K, V] {
	index := make(map[K]int)
	var buckets []Bucket[K, V]
	for i, elem := range col {
		k, v := fn(i, elem)
		pos, ok := index[k]
		if !ok {
			pos = len(buckets)
			index[k] = pos
			buckets = append(buckets, Bucket[K, V]{Key: k})
		}
		buckets[pos].Items = append(buckets[pos].Items, v)
	}
	return buckets
}

// Reduce maps the items of every bucket to a single value.
func Reduce[K comparable, V, R any](buckets []Bucket[K, V], fn func([]V) R) map[K]R {
	reduced := make(map[K]R, len(buckets))
	for _, b := range buckets {
		reduced[b.Key] = fn(b.Items)
	}
	return reduced
}

// Pair is a key and one of its values.
type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

// Unbucket flattens buckets into key/value pairs, preserving order.
func Unbucket[K comparable, V any](buckets []Bucket[K, V]) []Pair[K, V] {
	var pairs []Pair[K, V]
	for _, b := range buckets {
		for _, v := range b.Items {
			pairs = append(pairs, Pair[K, V]{Key: b.Key, Value: v})
		}
	}
	return pairs
}
