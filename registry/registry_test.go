package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"edgecoord/coordinatorerr"
	"edgecoord/ledger"
)

type fakePortal struct {
	allowed bool
	reason  string
	err     error
}

func (f fakePortal) Validate(ctx context.Context, agentID, registrationToken string) (bool, string, error) {
	return f.allowed, f.reason, f.err
}

type fakeBlacklist struct {
	blocked map[string]bool
}

func (f fakeBlacklist) IsBlacklisted(agentID string) bool {
	return f.blocked[agentID]
}

type recordingChain struct {
	appended []ledger.AppendInput
}

func (c *recordingChain) Append(in ledger.AppendInput) (ledger.Record, error) {
	c.appended = append(c.appended, in)
	return ledger.Record{EventType: in.EventType}, nil
}

func TestRegisterWithoutPortalAdmitsAndRecordsApproval(t *testing.T) {
	chain := &recordingChain{}
	r := New(nil, nil, chain, []byte("secret"), DefaultPowerPolicyParams())

	agent, err := r.Register(context.Background(), "agent-1", "tok", Capability{OS: "macos", Mode: ModeLaptop})
	require.NoError(t, err)
	require.NotEmpty(t, agent.MeshToken)
	require.Len(t, chain.appended, 1)
	require.Equal(t, ledger.EventNodeApproval, chain.appended[0].EventType)

	require.NoError(t, r.ValidateMeshToken("agent-1", agent.MeshToken))
}

func TestRegisterRejectedByPortalRecordsValidationFailure(t *testing.T) {
	chain := &recordingChain{}
	r := New(fakePortal{allowed: false, reason: "token_expired"}, nil, chain, []byte("secret"), DefaultPowerPolicyParams())

	_, err := r.Register(context.Background(), "agent-1", "tok", Capability{})
	require.Error(t, err)
	taxErr, ok := coordinatorerr.As(err)
	require.True(t, ok)
	require.Equal(t, coordinatorerr.CodeRegistrationTokenBad, taxErr.Code)

	require.Len(t, chain.appended, 1)
	require.Equal(t, ledger.EventNodeValidation, chain.appended[0].EventType)
}

func TestRegisterBlacklistedAgentIsDenied(t *testing.T) {
	r := New(nil, fakeBlacklist{blocked: map[string]bool{"bad-agent": true}}, nil, []byte("secret"), DefaultPowerPolicyParams())

	_, err := r.Register(context.Background(), "bad-agent", "tok", Capability{})
	require.Error(t, err)
	taxErr, ok := coordinatorerr.As(err)
	require.True(t, ok)
	require.Equal(t, coordinatorerr.CodeAgentBlacklisted, taxErr.Code)
}

func TestHeartbeatRequiresPriorRegistration(t *testing.T) {
	r := New(nil, nil, nil, []byte("secret"), DefaultPowerPolicyParams())
	_, err := r.Heartbeat("unknown", nil)
	require.Error(t, err)
	taxErr, ok := coordinatorerr.As(err)
	require.True(t, ok)
	require.Equal(t, coordinatorerr.CodeNodeNotActivated, taxErr.Code)
}

func TestHeartbeatUpdatesTelemetryAndRejectsLaterBlacklist(t *testing.T) {
	blacklist := fakeBlacklist{blocked: map[string]bool{}}
	r := New(nil, blacklist, nil, []byte("secret"), DefaultPowerPolicyParams())

	_, err := r.Register(context.Background(), "agent-1", "tok", Capability{Mode: ModeLaptop})
	require.NoError(t, err)

	agent, err := r.Heartbeat("agent-1", &PowerTelemetry{HasBatteryInfo: true, BatteryPct: 55})
	require.NoError(t, err)
	require.Equal(t, 55, agent.Capability.PowerTelemetry.BatteryPct)

	blacklist.blocked["agent-1"] = true
	_, err = r.Heartbeat("agent-1", nil)
	require.Error(t, err)
}

func TestValidateMeshTokenRejectsWrongOwner(t *testing.T) {
	r := New(nil, nil, nil, []byte("secret"), DefaultPowerPolicyParams())
	agent, err := r.Register(context.Background(), "agent-1", "tok", Capability{})
	require.NoError(t, err)

	err = r.ValidateMeshToken("agent-2", agent.MeshToken)
	require.Error(t, err)
	taxErr, ok := coordinatorerr.As(err)
	require.True(t, ok)
	require.Equal(t, coordinatorerr.CodeSessionOwnerMismatch, taxErr.Code)
}

func TestEvaluatePullReflectsPowerPolicy(t *testing.T) {
	r := New(nil, nil, nil, []byte("secret"), DefaultPowerPolicyParams())
	_, err := r.Register(context.Background(), "agent-1", "tok", Capability{
		Mode: ModeLaptop,
		PowerTelemetry: &PowerTelemetry{
			HasBatteryInfo: true,
			BatteryPct:     10,
		},
	})
	require.NoError(t, err)

	decision, err := r.EvaluatePull("agent-1")
	require.NoError(t, err)
	require.False(t, decision.AllowCoordinatorTasks)
	require.Equal(t, "battery_critical", decision.Reason)
}

func TestEvaluatePowerServerUnlimited(t *testing.T) {
	decision := EvaluatePower(DefaultPowerPolicyParams(), Capability{Mode: ModeServer}, 0, 1000)
	require.True(t, decision.AllowCoordinatorTasks)
	require.True(t, decision.AllowPeerDirectWork)
}

func TestEvaluatePowerIOSThrottlesRepeatedPulls(t *testing.T) {
	params := DefaultPowerPolicyParams()
	cap := Capability{
		OS: "ios",
		PowerTelemetry: &PowerTelemetry{
			HasBatteryInfo: true,
			BatteryPct:     60,
		},
	}
	decision := EvaluatePower(params, cap, 10_000, 20_000)
	require.False(t, decision.AllowCoordinatorTasks)
	require.Equal(t, "ios_pull_throttled", decision.Reason)
	require.Equal(t, params.BatteryPullMinIntervalMs-10_000, decision.DeferMs)
}
