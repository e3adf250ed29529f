package panel

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// liveViewServer exposes the panel state and gesture endpoints over HTTP so a
// browser front end or an operator console can drive the core remotely.
type liveViewServer struct {
	logger zerolog.Logger
	panel  *Panel
	server *http.Server
	ln     net.Listener
}

type liveStateResponse struct {
	Banner        Banner           `json:"banner"`
	Mode          Mode             `json:"mode"`
	EmergencyStop liveStopState    `json:"emergency_stop"`
	Widgets       []RenderState    `json:"widgets"`
	Alarms        []Alarm          `json:"alarms"`
	Actions       []OperatorAction `json:"actions"`
	Counts        liveAlarmCounts  `json:"counts"`
	Selected      string           `json:"selected,omitempty"`
	AlarmPanel    bool             `json:"alarm_panel"`
	Pending       bool             `json:"pending_confirmation"`
}

type liveStopState struct {
	Active   bool       `json:"active"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type liveAlarmCounts struct {
	Active   int `json:"active"`
	Critical int `json:"critical"`
	High     int `json:"high"`
}

type commandRequest struct {
	Widget string           `json:"widget"`
	Value  *json.RawMessage `json:"value"`
}

type ackRequest struct {
	Alarm string `json:"alarm"`
}

type modeRequest struct {
	Mode Mode `json:"mode"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newLiveViewServer(listen string, p *Panel, logger zerolog.Logger) (*liveViewServer, error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, err
	}
	s := &liveViewServer{logger: logger, panel: p, ln: ln}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/command", s.handleCommand)
	mux.HandleFunc("/api/command/confirm", s.handleConfirm)
	mux.HandleFunc("/api/command/cancel", s.handleCancel)
	mux.HandleFunc("/api/alarms/ack", s.handleAcknowledge)
	mux.HandleFunc("/api/estop", s.handleEmergencyStop)
	mux.HandleFunc("/api/mode", s.handleMode)

	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("live view server stopped")
		}
	}()
	logger.Info().Str("listen", ln.Addr().String()).Msg("live view listening")
	return s, nil
}

func (s *liveViewServer) address() string {
	if s == nil || s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *liveViewServer) close() {
	if s == nil || s.server == nil {
		return
	}
	if err := s.server.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("live view close")
	}
}

func (s *liveViewServer) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	p := s.panel
	active, deadline := p.stop.state()
	stop := liveStopState{Active: active}
	if active {
		stop.Deadline = &deadline
	}
	resp := liveStateResponse{
		Banner:        p.Status(),
		Mode:          p.Mode(),
		EmergencyStop: stop,
		Widgets:       p.RenderStates(),
		Alarms:        p.Alarms(),
		Actions:       p.Actions(),
		Counts: liveAlarmCounts{
			Active:   p.alarms.activeCount(),
			Critical: len(p.alarms.activeBySeverity(SeverityCritical)),
			High:     len(p.alarms.activeBySeverity(SeverityHigh)),
		},
		Selected:   p.SelectedWidget(),
		AlarmPanel: p.AlarmPanelOpen(),
		Pending:    p.PendingConfirmation(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *liveViewServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Widget == "" {
		writeError(w, http.StatusBadRequest, errors.New("widget is required"))
		return
	}
	var value interface{}
	if req.Value != nil {
		if err := json.Unmarshal(*req.Value, &value); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	outcome, err := s.panel.RequestCommand(req.Widget, value)
	if err != nil {
		writeError(w, rejectionStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *liveViewServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	outcome, err := s.panel.ConfirmPending()
	if err != nil {
		writeError(w, rejectionStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *liveViewServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	s.panel.CancelPending()
	writeJSON(w, http.StatusOK, DispatchOutcome{})
}

func (s *liveViewServer) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.panel.AcknowledgeAlarm(req.Alarm); err != nil {
		writeError(w, rejectionStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *liveViewServer) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	tripped := s.panel.TriggerEmergencyStop()
	writeJSON(w, http.StatusOK, map[string]bool{"tripped": tripped})
}

func (s *liveViewServer) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.panel.SetMode(req.Mode); err != nil {
		writeError(w, rejectionStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]Mode{"mode": req.Mode})
}

func rejectionStatus(err error) int {
	switch {
	case errors.Is(err, ErrEmergencyStopActive):
		return http.StatusConflict
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrReadOnly):
		return http.StatusConflict
	case errors.Is(err, ErrUnknownWidget), errors.Is(err, ErrAlarmNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoPendingCommand), errors.Is(err, ErrInvalidMode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
