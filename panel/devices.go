package panel

import "sync"

// statusStore holds the latest telemetry snapshot per device. Updates replace
// the stored snapshot wholesale; last write wins.
type statusStore struct {
	mu       sync.RWMutex
	statuses map[string]DeviceStatus
}

func newStatusStore() *statusStore {
	return &statusStore{statuses: make(map[string]DeviceStatus)}
}

func (s *statusStore) replace(status DeviceStatus) {
	if status.DeviceID == "" {
		return
	}
	s.mu.Lock()
	s.statuses[status.DeviceID] = status
	s.mu.Unlock()
}

// get returns a defensive copy so callers cannot mutate the stored snapshot
// through the shared parameter map.
func (s *statusStore) get(deviceID string) (DeviceStatus, bool) {
	s.mu.RLock()
	status, ok := s.statuses[deviceID]
	s.mu.RUnlock()
	if !ok {
		return DeviceStatus{}, false
	}
	return cloneStatus(status), true
}

func (s *statusStore) parameter(deviceID, name string) (Parameter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[deviceID]
	if !ok {
		return Parameter{}, false
	}
	param, ok := status.Parameters[name]
	return param, ok
}

func cloneStatus(status DeviceStatus) DeviceStatus {
	out := status
	if status.Parameters != nil {
		out.Parameters = make(map[string]Parameter, len(status.Parameters))
		for name, param := range status.Parameters {
			out.Parameters[name] = param
		}
	}
	out.Alarms = append([]string(nil), status.Alarms...)
	out.Warnings = append([]string(nil), status.Warnings...)
	return out
}
