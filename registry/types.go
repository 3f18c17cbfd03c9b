// Package registry implements the agent lifecycle subsystem (§4.4, C5):
// portal-gated registration, heartbeat tracking, power-aware admission, and
// blacklist enforcement at register, heartbeat and pull (EvaluatePull).
// Result submission does not pass through the registry and is not checked
// against the blacklist.
package registry

// DeviceMode enumerates the reported device form factor.
type DeviceMode string

const (
	ModePhone       DeviceMode = "phone"
	ModeLaptop      DeviceMode = "laptop"
	ModeDesktop     DeviceMode = "desktop"
	ModeServer      DeviceMode = "server"
)

// ThermalState is the reported thermal throttling state of a device.
type ThermalState string

const (
	ThermalNominal  ThermalState = "nominal"
	ThermalFair     ThermalState = "fair"
	ThermalSerious  ThermalState = "serious"
	ThermalCritical ThermalState = "critical"
)

// PowerTelemetry captures the battery/thermal signals the power policy
// evaluator consumes (§4.4).
type PowerTelemetry struct {
	OnACPower      bool
	HasBatteryInfo bool
	BatteryPct     int
	Thermal        ThermalState
	CPUUsagePct    int
	LowPowerMode   bool // iOS-specific
}

// Capability describes what an agent reports about itself at registration.
type Capability struct {
	OS                  string
	Version             string
	Mode                DeviceMode
	LocalModelProvider  string
	LocalModelCatalog   []string
	ClientType          string
	MaxConcurrentTasks  int
	OwnerEmail          string
	SourceIP            string
	PowerTelemetry      *PowerTelemetry
}

// OrchestrationRecord tracks an agent's active model-rollout assignment, if
// any (§9 Agent data model, "active orchestration record").
type OrchestrationRecord struct {
	RolloutID string
	Model     string
}

// Agent is the coordinator's view of a registered device (§3).
type Agent struct {
	AgentID            string
	Capability         Capability
	LastHeartbeatMs    int64
	LastTaskAssignedMs int64
	ConnectedPeers     map[string]struct{}
	Orchestration      *OrchestrationRecord
	MeshToken          string
}
