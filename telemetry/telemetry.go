package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector captures telemetry events emitted by the panel core.
//
// Implementations may forward metrics to Prometheus, loggers or other
// monitoring systems. They should be inexpensive to call because hooks are
// executed inline with operator gestures.
type Collector interface {
	IncCommandDispatched(device string)
	IncCommandRejected(reason string)
	IncAlarmAcknowledged()
	IncEmergencyStop()
	SetActiveAlarms(count int)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncCommandDispatched(string) {}
func (noopCollector) IncCommandRejected(string)   {}
func (noopCollector) IncAlarmAcknowledged()       {}
func (noopCollector) IncEmergencyStop()           {}
func (noopCollector) SetActiveAlarms(int)         {}

// PrometheusCollector exposes panel counters via Prometheus.
type PrometheusCollector struct {
	dispatched   *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	acknowledged prometheus.Counter
	stops        prometheus.Counter
	activeAlarms prometheus.Gauge
}

var (
	registerMu        sync.Mutex
	dispatchedCounter *prometheus.CounterVec
	rejectedCounter   *prometheus.CounterVec
	ackCounter        prometheus.Counter
	stopCounter       prometheus.Counter
	activeAlarmGauge  prometheus.Gauge
)

// NewPrometheusCollector registers the panel metrics with the provided
// registerer. Repeated registration reuses the existing collectors.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	registerMu.Lock()
	defer registerMu.Unlock()

	if dispatchedCounter == nil {
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scada_panel_commands_dispatched_total",
			Help: "Number of operator commands forwarded to the command sink per device.",
		}, []string{"device"})
		registered, err := registerCounterVec(reg, counter)
		if err != nil {
			return nil, err
		}
		dispatchedCounter = registered
	}
	if rejectedCounter == nil {
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scada_panel_commands_rejected_total",
			Help: "Number of operator commands rejected before reaching the sink, by reason.",
		}, []string{"reason"})
		registered, err := registerCounterVec(reg, counter)
		if err != nil {
			return nil, err
		}
		rejectedCounter = registered
	}
	if ackCounter == nil {
		counter := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scada_panel_alarms_acknowledged_total",
			Help: "Number of alarm acknowledgements issued from this panel.",
		})
		registered, err := registerCounter(reg, counter)
		if err != nil {
			return nil, err
		}
		ackCounter = registered
	}
	if stopCounter == nil {
		counter := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scada_panel_emergency_stops_total",
			Help: "Number of emergency stop trips issued from this panel.",
		})
		registered, err := registerCounter(reg, counter)
		if err != nil {
			return nil, err
		}
		stopCounter = registered
	}
	if activeAlarmGauge == nil {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scada_panel_alarms_active",
			Help: "Number of alarms currently in the active state.",
		})
		registered, err := registerGauge(reg, gauge)
		if err != nil {
			return nil, err
		}
		activeAlarmGauge = registered
	}

	return &PrometheusCollector{
		dispatched:   dispatchedCounter,
		rejected:     rejectedCounter,
		acknowledged: ackCounter,
		stops:        stopCounter,
		activeAlarms: activeAlarmGauge,
	}, nil
}

func registerCounterVec(reg prometheus.Registerer, counter *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return counter, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return gauge, nil
}

// IncCommandDispatched counts an accepted command per device.
func (p *PrometheusCollector) IncCommandDispatched(device string) {
	if p == nil || p.dispatched == nil {
		return
	}
	p.dispatched.WithLabelValues(device).Inc()
}

// IncCommandRejected counts a rejected command by rejection reason.
func (p *PrometheusCollector) IncCommandRejected(reason string) {
	if p == nil || p.rejected == nil {
		return
	}
	p.rejected.WithLabelValues(reason).Inc()
}

// IncAlarmAcknowledged counts an acknowledgement raised from this panel.
func (p *PrometheusCollector) IncAlarmAcknowledged() {
	if p == nil || p.acknowledged == nil {
		return
	}
	p.acknowledged.Inc()
}

// IncEmergencyStop counts an interlock trip.
func (p *PrometheusCollector) IncEmergencyStop() {
	if p == nil || p.stops == nil {
		return
	}
	p.stops.Inc()
}

// SetActiveAlarms updates the active alarm gauge.
func (p *PrometheusCollector) SetActiveAlarms(count int) {
	if p == nil || p.activeAlarms == nil {
		return
	}
	p.activeAlarms.Set(float64(count))
}
