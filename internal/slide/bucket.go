package slide

// bucketSize is the fixed capacity of a bucket.
const bucketSize = 128

// bucket is a fixed-capacity FIFO ring buffer of neuron ids, one cell of an
// LSH hash table. Mutated only during the serial rehash phase, never
// concurrently.
type bucket struct {
	arr   [bucketSize]int
	count int
}

// add inserts id, wrapping around once the bucket is full, and returns the
// slot it was written to.
func (b *bucket) add(id int) int {
	slot := b.count % bucketSize
	b.arr[slot] = id
	b.count++
	return slot
}

// getAll returns the currently visible contents: arr[0:min(count,
// bucketSize)].
func (b *bucket) getAll() []int {
	n := b.count
	if n > bucketSize {
		n = bucketSize
	}
	return b.arr[:n]
}

// clear resets the bucket to empty without reallocating its storage.
func (b *bucket) clear() {
	b.count = 0
}
