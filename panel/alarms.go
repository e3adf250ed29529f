package panel

import (
	"sort"
	"sync"
)

// alarmSet is the local view of the external alarm source. Lifecycle changes
// arrive from outside; acknowledgements update the local view optimistically
// while the acknowledge request travels back to the source.
type alarmSet struct {
	mu     sync.RWMutex
	alarms map[string]Alarm
}

func newAlarmSet() *alarmSet {
	return &alarmSet{alarms: make(map[string]Alarm)}
}

func (s *alarmSet) replace(alarms []Alarm) {
	s.mu.Lock()
	s.alarms = make(map[string]Alarm, len(alarms))
	for _, alarm := range alarms {
		if alarm.ID == "" {
			continue
		}
		s.alarms[alarm.ID] = alarm
	}
	s.mu.Unlock()
}

func (s *alarmSet) upsert(alarm Alarm) {
	if alarm.ID == "" {
		return
	}
	s.mu.Lock()
	s.alarms[alarm.ID] = alarm
	s.mu.Unlock()
}

// clear marks the alarm cleared. Cleared is terminal but the alarm stays in
// the set so history remains visible until the source replaces it.
func (s *alarmSet) clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	alarm, ok := s.alarms[id]
	if !ok {
		return false
	}
	alarm.Status = AlarmCleared
	s.alarms[id] = alarm
	return true
}

// acknowledge transitions an active alarm to acknowledged and returns the
// updated alarm. Unknown ids yield ErrAlarmNotFound.
func (s *alarmSet) acknowledge(id string) (Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alarm, ok := s.alarms[id]
	if !ok {
		return Alarm{}, ErrAlarmNotFound
	}
	if alarm.Status == AlarmActive {
		alarm.Status = AlarmAcknowledged
		s.alarms[id] = alarm
	}
	return alarm, nil
}

func (s *alarmSet) activeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, alarm := range s.alarms {
		if alarm.Status == AlarmActive {
			count++
		}
	}
	return count
}

// activeBySeverity returns the active alarms of the given severity.
func (s *alarmSet) activeBySeverity(severity Severity) []Alarm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Alarm
	for _, alarm := range s.alarms {
		if alarm.Status == AlarmActive && alarm.Severity == severity {
			out = append(out, alarm)
		}
	}
	sortAlarms(out)
	return out
}

// snapshot returns all alarms ranked by severity, then priority, then age.
func (s *alarmSet) snapshot() []Alarm {
	s.mu.RLock()
	out := make([]Alarm, 0, len(s.alarms))
	for _, alarm := range s.alarms {
		out = append(out, alarm)
	}
	s.mu.RUnlock()
	sortAlarms(out)
	return out
}

func sortAlarms(alarms []Alarm) {
	sort.SliceStable(alarms, func(i, j int) bool {
		a, b := alarms[i], alarms[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
}
