package panel

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
)

func startLiveView(t *testing.T, p *Panel) string {
	t.Helper()
	if err := p.EnableLiveView("127.0.0.1:0"); err != nil {
		t.Fatalf("enable live view: %v", err)
	}
	addr := p.LiveViewAddress()
	if addr == "" {
		t.Fatal("live view address empty")
	}
	return "http://" + addr
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestLiveViewState(t *testing.T) {
	p, _, _ := newTestPanel(t, testUser())
	p.ReplaceAlarms([]Alarm{{ID: "a1", Severity: SeverityHigh, Status: AlarmActive, Message: "hot"}})
	base := startLiveView(t, p)

	resp, err := http.Get(base + "/api/state")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var state liveStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Banner != BannerWarning {
		t.Fatalf("banner = %q, want %q", state.Banner, BannerWarning)
	}
	if len(state.Widgets) != 6 {
		t.Fatalf("widgets = %d, want 6", len(state.Widgets))
	}
	if state.Counts.High != 1 || state.Counts.Active != 1 {
		t.Fatalf("counts = %+v", state.Counts)
	}
}

func TestLiveViewCommand(t *testing.T) {
	p, recorder, _ := newTestPanel(t, testUser())
	base := startLiveView(t, p)

	resp := postJSON(t, base+"/api/command", map[string]interface{}{
		"widget": "setpoint",
		"value":  82,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var outcome DispatchOutcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if !outcome.Dispatched {
		t.Fatalf("outcome = %+v", outcome)
	}
	if cmd := recorder.lastCommand(t); cmd.Value != 80.0 {
		t.Fatalf("sink value = %v, want 80", cmd.Value)
	}
}

func TestLiveViewCommandRejections(t *testing.T) {
	p, _, _ := newTestPanel(t, testUser())
	base := startLiveView(t, p)

	p.TriggerEmergencyStop()
	resp := postJSON(t, base+"/api/command", map[string]interface{}{"widget": "start", "value": true})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("tripped dispatch status = %d, want 409", resp.StatusCode)
	}

	resp = postJSON(t, base+"/api/command", map[string]interface{}{"widget": "missing", "value": 1})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown widget status = %d, want 404", resp.StatusCode)
	}
}

func TestLiveViewEmergencyStop(t *testing.T) {
	p, recorder, _ := newTestPanel(t, testUser())
	base := startLiveView(t, p)

	for i := 0; i < 2; i++ {
		resp := postJSON(t, base+"/api/estop", struct{}{})
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("estop status = %d", resp.StatusCode)
		}
	}
	if recorder.stops != 1 {
		t.Fatalf("stop sink calls = %d, want 1", recorder.stops)
	}
	if !p.EmergencyStopActive() {
		t.Fatal("interlock not tripped")
	}
}

func TestLiveViewAcknowledge(t *testing.T) {
	p, _, _ := newTestPanel(t, testUser())
	p.ReplaceAlarms([]Alarm{{ID: "a1", Severity: SeverityCritical, Status: AlarmActive, Message: "boom"}})
	base := startLiveView(t, p)

	resp := postJSON(t, base+"/api/alarms/ack", map[string]string{"alarm": "a1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ack status = %d", resp.StatusCode)
	}
	if p.ActiveAlarmCount() != 0 {
		t.Fatal("alarm still active after ack")
	}

	resp = postJSON(t, base+"/api/alarms/ack", map[string]string{"alarm": "ghost"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown alarm status = %d, want 404", resp.StatusCode)
	}
}

func TestLiveViewMode(t *testing.T) {
	p, _, _ := newTestPanel(t, testUser())
	base := startLiveView(t, p)

	resp := postJSON(t, base+"/api/mode", map[string]string{"mode": "manual"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mode status = %d", resp.StatusCode)
	}
	if p.Mode() != ModeManual {
		t.Fatalf("mode = %s", p.Mode())
	}

	resp = postJSON(t, base+"/api/mode", map[string]string{"mode": "turbo"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid mode status = %d, want 400", resp.StatusCode)
	}
}

func TestLiveViewMethodGuard(t *testing.T) {
	p, _, _ := newTestPanel(t, testUser())
	base := startLiveView(t, p)

	resp, err := http.Get(base + "/api/estop")
	if err != nil {
		t.Fatalf("get estop: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
	if p.EmergencyStopActive() {
		t.Fatal("GET tripped the interlock")
	}
}
