package poll

import (
	"github.com/shimmeringbee/zwa/descriptor"
	"slices"
	"sort"
)

// queue holds entries grouped by ascending node id, entries of the same node in insertion order.
type queue struct {
	entries []*Entry
}

func (q *queue) len() int {
	return len(q.entries)
}

// insert places e after every existing entry of its node, before the first entry of a greater node.
func (q *queue) insert(e *Entry) {
	i := q.afterNode(e.nodeID())
	q.entries = slices.Insert(q.entries, i, e)
}

// afterNode returns the index of the first entry whose node id is greater than n.
func (q *queue) afterNode(n descriptor.NodeID) int {
	return sort.Search(len(q.entries), func(i int) bool {
		return q.entries[i].nodeID() > n
	})
}

// after returns the index of the first entry ordered after the position (n, seq). The position need not still
// be present in the queue.
func (q *queue) after(n descriptor.NodeID, seq uint64) int {
	return sort.Search(len(q.entries), func(i int) bool {
		e := q.entries[i]
		return e.nodeID() > n || (e.nodeID() == n && e.seq > seq)
	})
}

func (q *queue) find(pred func(*Entry) bool) *Entry {
	for _, e := range q.entries {
		if pred(e) {
			return e
		}
	}

	return nil
}

// removeFunc removes entries matching pred, stopping after the first unless all is set.
func (q *queue) removeFunc(pred func(*Entry) bool, all bool) []*Entry {
	var removed []*Entry

	q.entries = slices.DeleteFunc(q.entries, func(e *Entry) bool {
		if !all && len(removed) > 0 {
			return false
		}

		if pred(e) {
			removed = append(removed, e)
			return true
		}

		return false
	})

	return removed
}

func byHandle(h uint32) func(*Entry) bool {
	return func(e *Entry) bool {
		return e.Handle == h
	}
}

func byToken(t uint32) func(*Entry) bool {
	return func(e *Entry) bool {
		return e.Token == t
	}
}

func byNode(n descriptor.NodeID) func(*Entry) bool {
	return func(e *Entry) bool {
		return e.nodeID() == n
	}
}

func byPointer(p *Entry) func(*Entry) bool {
	return func(e *Entry) bool {
		return e == p
	}
}

func everything(*Entry) bool {
	return true
}
