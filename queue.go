package apns

// queueName tags which delivery queue a message currently sits in.
type queueName uint8

const (
	queueNone queueName = iota
	queueSend
	queueStage
	queueError
)

// messageTable owns every live message, keyed by identifier. The three
// delivery queues hold only ids, so moving a message between queues is a tag
// change and looking one up by the identifier from an APNS error response is
// a map access. A message is in exactly one queue until it is removed.
type messageTable struct {
	messages map[uint32]*Message
	queues   map[uint32]queueName
	order    map[queueName][]uint32 // insertion order, compacted lazily
	counts   map[queueName]int
}

func newMessageTable() *messageTable {
	return &messageTable{
		messages: make(map[uint32]*Message),
		queues:   make(map[uint32]queueName),
		order:    make(map[queueName][]uint32),
		counts:   make(map[queueName]int),
	}
}

// add inserts a message with an already assigned id into the send queue.
func (t *messageTable) add(msg *Message) {
	t.messages[msg.id] = msg
	t.queues[msg.id] = queueSend
	t.order[queueSend] = append(t.order[queueSend], msg.id)
	t.counts[queueSend]++
}

// byId returns the message with the given id and the queue holding it.
func (t *messageTable) byId(id uint32) (*Message, queueName) {
	msg, ok := t.messages[id]
	if !ok {
		return nil, queueNone
	}
	return msg, t.queues[id]
}

// move re-tags a message into another queue.
func (t *messageTable) move(id uint32, to queueName) bool {
	from, ok := t.queues[id]
	if !ok || from == to {
		return false
	}
	t.queues[id] = to
	t.order[to] = append(t.order[to], id)
	t.counts[from]--
	t.counts[to]++
	return true
}

// remove drops a message from the table entirely.
func (t *messageTable) remove(id uint32) bool {
	from, ok := t.queues[id]
	if !ok {
		return false
	}
	delete(t.messages, id)
	delete(t.queues, id)
	t.counts[from]--
	return true
}

// len returns the number of messages in a queue.
func (t *messageTable) len(q queueName) int {
	return t.counts[q]
}

// snapshot returns the ids currently in a queue in insertion order. The
// backing order slice is compacted as a side effect, dropping ids that have
// moved or been removed since they were appended. A message that left the
// queue and came back may be recorded twice, so the first occurrence wins.
func (t *messageTable) snapshot(q queueName) []uint32 {
	stale := t.order[q]
	live := stale[:0]
	seen := make(map[uint32]struct{}, len(stale))
	for _, id := range stale {
		if t.queues[id] != q {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		live = append(live, id)
	}
	t.order[q] = live
	ids := make([]uint32, len(live))
	copy(ids, live)
	return ids
}

// stageAfter returns the ids of staged messages assigned after the given
// identifier. Those are the messages APNS silently dropped when it reported
// an error for the offender and closed the stream.
func (t *messageTable) stageAfter(id uint32) []uint32 {
	var ids []uint32
	for _, staged := range t.snapshot(queueStage) {
		if staged > id {
			ids = append(ids, staged)
		}
	}
	return ids
}
