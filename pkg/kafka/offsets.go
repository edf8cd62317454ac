package kafka

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

type partition struct {
	topic string
	id    int
}

type partitionOffsets struct {
	fetched []kafka.Message // fetch order, not yet committed
	done    map[int64]bool
	stuck   bool
	stuckAt int64
}

// offsetTracker commits a partition strictly in fetch order: an offset is
// committed only after every earlier fetched offset of the same partition
// has settled. A message that could neither be handled nor dead-lettered
// pauses commits on its partition, so it is redelivered after a restart or
// rebalance instead of being overtaken by a later commit. Commits resume
// once the partition is fetched again from that offset or earlier.
type offsetTracker struct {
	mu    sync.Mutex
	parts map[partition]*partitionOffsets
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{parts: make(map[partition]*partitionOffsets)}
}

func (t *offsetTracker) state(m kafka.Message) *partitionOffsets {
	key := partition{m.Topic, m.Partition}
	st, ok := t.parts[key]
	if !ok {
		st = &partitionOffsets{done: make(map[int64]bool)}
		t.parts[key] = st
	}
	return st
}

// begin records a fetched message. Messages must be begun in fetch order.
func (t *offsetTracker) begin(m kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state(m)
	if st.stuck {
		if m.Offset > st.stuckAt {
			return
		}
		// rewound to the paused offset: track afresh
		st.stuck = false
		st.fetched = nil
		st.done = make(map[int64]bool)
	}
	st.fetched = append(st.fetched, kafka.Message{Topic: m.Topic, Partition: m.Partition, Offset: m.Offset})
}

// settle marks m finished. With handled false the partition is paused.
// When the settled prefix of the partition advances, commit is called with
// its last message while the tracker is locked, so commits never go
// backwards. It reports whether the partition is paused.
func (t *offsetTracker) settle(m kafka.Message, handled bool, commit func(kafka.Message) error) (paused bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state(m)
	if st.stuck {
		return true, nil
	}
	if !handled {
		st.stuck, st.stuckAt = true, m.Offset
		st.fetched, st.done = nil, make(map[int64]bool)
		return true, nil
	}
	st.done[m.Offset] = true

	var last kafka.Message
	advanced := false
	for len(st.fetched) > 0 && st.done[st.fetched[0].Offset] {
		last = st.fetched[0]
		delete(st.done, last.Offset)
		st.fetched = st.fetched[1:]
		advanced = true
	}
	if !advanced {
		return false, nil
	}
	return false, commit(last)
}
