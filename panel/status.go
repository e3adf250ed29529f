package panel

// Banner is the overall system status shown above the diagram.
type Banner string

const (
	BannerEmergencyStop Banner = "EMERGENCY STOP"
	BannerCritical      Banner = "CRITICAL ALERT"
	BannerWarning       Banner = "WARNING"
	BannerAlert         Banner = "ALERT"
	BannerNormal        Banner = "NORMAL"
)

// deriveBanner evaluates the banner in strict priority order; the interlock
// dominates every alarm state.
func deriveBanner(stopActive bool, alarms *alarmSet) Banner {
	if stopActive {
		return BannerEmergencyStop
	}
	if len(alarms.activeBySeverity(SeverityCritical)) > 0 {
		return BannerCritical
	}
	if len(alarms.activeBySeverity(SeverityHigh)) > 0 {
		return BannerWarning
	}
	if alarms.activeCount() > 0 {
		return BannerAlert
	}
	return BannerNormal
}
