package registry

import "time"

// PowerDecision is the outcome of consulting the power policy evaluator
// before handing an agent a task (§4.4).
type PowerDecision struct {
	AllowCoordinatorTasks bool
	AllowPeerDirectWork   bool
	AllowSmallTasksOnly   bool
	DeferMs               int64
	Reason                string
}

// PowerPolicyParams carries the tunable thresholds the evaluator applies.
// Zero values fall back to the documented §4.4 defaults.
type PowerPolicyParams struct {
	LaptopLowBatteryPct      int   // default 15
	LaptopMidBatteryPct      int   // default 40
	CPUBusyThresholdPct      int   // default 85
	IOSBatteryStopLevelPct   int   // default 20, env IOS_BATTERY_TASK_STOP_LEVEL_PCT
	BatteryPullMinIntervalMs int64 // default 45000
}

// DefaultPowerPolicyParams returns the §4.4 documented defaults.
func DefaultPowerPolicyParams() PowerPolicyParams {
	return PowerPolicyParams{
		LaptopLowBatteryPct:      15,
		LaptopMidBatteryPct:      40,
		CPUBusyThresholdPct:      85,
		IOSBatteryStopLevelPct:   20,
		BatteryPullMinIntervalMs: 45000,
	}
}

func (p PowerPolicyParams) withDefaults() PowerPolicyParams {
	d := DefaultPowerPolicyParams()
	if p.LaptopLowBatteryPct == 0 {
		p.LaptopLowBatteryPct = d.LaptopLowBatteryPct
	}
	if p.LaptopMidBatteryPct == 0 {
		p.LaptopMidBatteryPct = d.LaptopMidBatteryPct
	}
	if p.CPUBusyThresholdPct == 0 {
		p.CPUBusyThresholdPct = d.CPUBusyThresholdPct
	}
	if p.IOSBatteryStopLevelPct == 0 {
		p.IOSBatteryStopLevelPct = d.IOSBatteryStopLevelPct
	}
	if p.BatteryPullMinIntervalMs == 0 {
		p.BatteryPullMinIntervalMs = d.BatteryPullMinIntervalMs
	}
	return p
}

// EvaluatePower implements the §4.4 power policy rules, evaluated top-down,
// first match wins.
func EvaluatePower(params PowerPolicyParams, cap Capability, lastTaskAssignedAtMs int64, nowMs int64) PowerDecision {
	params = params.withDefaults()
	t := cap.PowerTelemetry

	if cap.Mode == ModeServer {
		return PowerDecision{AllowCoordinatorTasks: true, AllowPeerDirectWork: true, Reason: "server_unlimited"}
	}

	if t != nil && t.CPUUsagePct > params.CPUBusyThresholdPct {
		return PowerDecision{DeferMs: int64(5 * time.Second / time.Millisecond), Reason: "cpu_busy"}
	}

	if t != nil && (t.Thermal == ThermalSerious || t.Thermal == ThermalCritical) {
		return PowerDecision{Reason: "thermal_throttled"}
	}

	if cap.OS == "ios" {
		return evaluateIOS(params, t, lastTaskAssignedAtMs, nowMs)
	}

	if t == nil || !t.HasBatteryInfo || t.OnACPower {
		return PowerDecision{AllowCoordinatorTasks: true, AllowPeerDirectWork: true, Reason: "ac_power_or_unknown"}
	}

	// Laptop on battery.
	switch {
	case t.BatteryPct < params.LaptopLowBatteryPct:
		return PowerDecision{Reason: "battery_critical"}
	case t.BatteryPct <= params.LaptopMidBatteryPct:
		return PowerDecision{AllowCoordinatorTasks: true, AllowSmallTasksOnly: true, Reason: "battery_low_small_tasks_only"}
	default:
		return PowerDecision{AllowCoordinatorTasks: true, Reason: "battery_ok_no_peer_direct"}
	}
}

func evaluateIOS(params PowerPolicyParams, t *PowerTelemetry, lastTaskAssignedAtMs, nowMs int64) PowerDecision {
	if t == nil {
		return PowerDecision{AllowCoordinatorTasks: true, Reason: "ios_no_telemetry"}
	}
	if t.LowPowerMode {
		return PowerDecision{Reason: "ios_low_power_mode"}
	}
	if t.OnACPower {
		return PowerDecision{AllowCoordinatorTasks: true, AllowPeerDirectWork: true, Reason: "ios_external_power"}
	}
	if t.BatteryPct <= params.IOSBatteryStopLevelPct {
		return PowerDecision{Reason: "ios_battery_stop_level"}
	}
	if lastTaskAssignedAtMs > 0 && nowMs-lastTaskAssignedAtMs < params.BatteryPullMinIntervalMs {
		return PowerDecision{Reason: "ios_pull_throttled", DeferMs: params.BatteryPullMinIntervalMs - (nowMs - lastTaskAssignedAtMs)}
	}
	return PowerDecision{AllowCoordinatorTasks: true, Reason: "ios_coordinator_only"}
}
