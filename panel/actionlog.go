package panel

import "sync"

// actionLog is the bounded, most-recent-first operator action feed. It is a
// display and audit convenience, not the system of record; once the capacity
// is reached the oldest entry is evicted.
type actionLog struct {
	mu      sync.RWMutex
	limit   int
	entries []OperatorAction
}

func newActionLog(limit int) *actionLog {
	if limit <= 0 {
		limit = 50
	}
	return &actionLog{limit: limit}
}

func (l *actionLog) append(action OperatorAction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]OperatorAction{action}, l.entries...)
	if len(l.entries) > l.limit {
		l.entries = l.entries[:l.limit]
	}
}

func (l *actionLog) snapshot() []OperatorAction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]OperatorAction(nil), l.entries...)
}
