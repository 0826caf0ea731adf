package pending

// Queue holds raw server item IDs that arrived before any identity map could
// resolve them. It is drained once per fresh map and never re-enqueues.
type Queue struct {
	ids []int64
}

// Enqueue appends id in arrival order. Duplicates are kept: each receipt of
// an item is a separate event.
func (q *Queue) Enqueue(id int64) {
	q.ids = append(q.ids, id)
}

func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.ids)
}

// IDs returns a copy of the queued IDs in arrival order.
func (q *Queue) IDs() []int64 {
	if q == nil || len(q.ids) == 0 {
		return nil
	}
	return append([]int64(nil), q.ids...)
}

func (q *Queue) Clone() *Queue {
	if q == nil {
		return &Queue{}
	}
	return &Queue{ids: q.IDs()}
}

// Drain offers every queued ID to apply in arrival order and empties the
// queue. apply reports the capability key the item unlocked, empty for
// items that resolve to no capability, and whether it resolved at all.
// Drain returns the non-empty keys in order. IDs apply rejects are returned
// as dropped; they are not retried.
func (q *Queue) Drain(apply func(id int64) (key string, ok bool)) (keys []string, dropped []int64) {
	ids := q.ids
	q.ids = nil
	for _, id := range ids {
		key, ok := apply(id)
		if !ok {
			dropped = append(dropped, id)
			continue
		}
		if key != "" {
			keys = append(keys, key)
		}
	}
	return keys, dropped
}

func (q *Queue) Reset() {
	q.ids = nil
}
