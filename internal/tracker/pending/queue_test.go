package pending

import (
	"reflect"
	"testing"
)

func TestDrainAppliesInOrderAndClears(t *testing.T) {
	var q Queue
	for _, id := range []int64{3, 1, 2, 1} {
		q.Enqueue(id)
	}
	names := map[int64]string{1: "springs", 3: ""}
	var seen []int64
	keys, dropped := q.Drain(func(id int64) (string, bool) {
		seen = append(seen, id)
		key, ok := names[id]
		return key, ok
	})
	if !reflect.DeepEqual(seen, []int64{3, 1, 2, 1}) {
		t.Fatalf("order: %v", seen)
	}
	if !reflect.DeepEqual(keys, []string{"springs", "springs"}) || !reflect.DeepEqual(dropped, []int64{2}) {
		t.Fatalf("keys=%v dropped=%v", keys, dropped)
	}
	if q.Len() != 0 {
		t.Fatalf("queue not cleared: %v", q.IDs())
	}
}

func TestDrainNeverReenqueues(t *testing.T) {
	var q Queue
	q.Enqueue(7)
	_, dropped := q.Drain(func(int64) (string, bool) { return "", false })
	if len(dropped) != 1 {
		t.Fatalf("dropped=%v", dropped)
	}
	calls := 0
	q.Drain(func(int64) (string, bool) { calls++; return "", true })
	if calls != 0 {
		t.Fatalf("dropped item was retried")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	var q Queue
	q.Enqueue(1)
	c := q.Clone()
	c.Enqueue(2)
	if q.Len() != 1 || c.Len() != 2 {
		t.Fatalf("clone shares storage: %v %v", q.IDs(), c.IDs())
	}
	var nilQ *Queue
	if nilQ.Len() != 0 || nilQ.Clone().Len() != 0 {
		t.Fatalf("nil queue should behave as empty")
	}
}
