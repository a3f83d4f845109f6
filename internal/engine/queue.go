package engine

// The waiting queue is strict FIFO: the slice order is authoritative,
// EnqueuedAt exists for wait-duration display.

func queuedIndex(q []QueueEntry, userID int64) int {
	for i := range q {
		if q[i].UserID == userID {
			return i
		}
	}
	return -1
}

func dequeueFront(q []QueueEntry) (QueueEntry, []QueueEntry) {
	head := q[0]
	rest := make([]QueueEntry, len(q)-1)
	copy(rest, q[1:])
	return head, rest
}

func pushFront(q []QueueEntry, e QueueEntry) []QueueEntry {
	out := make([]QueueEntry, 0, len(q)+1)
	out = append(out, e)
	return append(out, q...)
}

// removeQueued drops userID from the queue wherever it sits. The third
// return reports whether the player was queued at all.
func removeQueued(q []QueueEntry, userID int64) ([]QueueEntry, QueueEntry, bool) {
	i := queuedIndex(q, userID)
	if i < 0 {
		return q, QueueEntry{}, false
	}
	entry := q[i]
	out := make([]QueueEntry, 0, len(q)-1)
	out = append(out, q[:i]...)
	return append(out, q[i+1:]...), entry, true
}
