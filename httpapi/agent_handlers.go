package httpapi

import (
	"net/http"
	"time"

	"edgecoord/coordinatorerr"
	"edgecoord/ledger"
	"edgecoord/queue"
	"edgecoord/registry"
)

// rewardCreditsPerCompletion is the flat credit amount an agent earns for
// each subtask completed ok:true (Scenario S2).
const rewardCreditsPerCompletion = 5

// claimOnce reports whether subtaskID has not yet had a task_claim record
// appended to the ordering chain, and marks it recorded. Guards Claim
// uniqueness (§8 Testable Property 1) across repeated claims of the same
// subtask after a stale-claim requeue.
func (s *Server) claimOnce(subtaskID string) bool {
	s.claimedMu.Lock()
	defer s.claimedMu.Unlock()
	if _, seen := s.claimedIDs[subtaskID]; seen {
		return false
	}
	s.claimedIDs[subtaskID] = struct{}{}
	return true
}

type registerRequest struct {
	AgentID           string              `json:"agentId"`
	RegistrationToken string              `json:"registrationToken"`
	Capability        registry.Capability `json:"capability"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed request body"))
		return
	}
	agent, err := s.deps.Registry.Register(r.Context(), req.AgentID, req.RegistrationToken, req.Capability)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

type heartbeatRequest struct {
	Telemetry *registry.PowerTelemetry `json:"telemetry"`
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	agentID := agentIDFromContext(r)
	var req heartbeatRequest
	_ = decodeJSON(r, &req)

	agent, err := s.deps.Registry.Heartbeat(agentID, req.Telemetry)
	if err != nil {
		writeError(w, err)
		return
	}

	var rollout *struct {
		RolloutID      string `json:"rolloutId"`
		RequestedModel string `json:"requestedModel"`
	}
	if s.deps.Orch != nil {
		if decision, ok := s.deps.Orch.Decide(agentID, agent.Capability.ClientType, ""); ok {
			rollout = &struct {
				RolloutID      string `json:"rolloutId"`
				RequestedModel string `json:"requestedModel"`
			}{RolloutID: decision.RolloutID, RequestedModel: decision.RequestedModel}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"agent": agent, "orchestration": rollout})
}

type submitRequest struct {
	Subtask      queue.Subtask `json:"subtask"`
	ClaimDelayMs int64         `json:"claimDelayMs"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed request body"))
		return
	}
	materialised := s.deps.Queue.Enqueue(req.Subtask, queue.EnqueueOptions{ClaimDelayMs: req.ClaimDelayMs})
	if s.deps.Chain != nil {
		_, _ = s.deps.Chain.Append(ledger.AppendInput{
			EventType:  ledger.EventTaskEnqueue,
			TaskID:     materialised.TaskID,
			SubtaskID:  materialised.SubtaskID,
			IssuedAtMs: time.Now().UnixMilli(),
			Payload:    map[string]any{"projectId": materialised.ProjectID, "resourceClass": materialised.ResourceClass},
		})
	}
	writeJSON(w, http.StatusOK, materialised)
}

type pullRequest struct {
	ActiveModel string `json:"activeModel"`
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	agentID := agentIDFromContext(r)

	decision, err := s.deps.Registry.EvaluatePull(agentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !decision.AllowCoordinatorTasks {
		setRetryAfterMs(w, decision.DeferMs)
		writeError(w, coordinatorerr.New(coordinatorerr.CodeTaskNotClaimable, decision.Reason))
		return
	}

	var req pullRequest
	_ = decodeJSON(r, &req)

	subtask, ok := s.deps.Queue.Claim(agentID, req.ActiveModel)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"subtask": nil})
		return
	}
	s.deps.Registry.RecordAssignment(agentID)

	if s.deps.Chain != nil && s.claimOnce(subtask.SubtaskID) {
		_, _ = s.deps.Chain.Append(ledger.AppendInput{
			EventType:  ledger.EventTaskClaim,
			TaskID:     subtask.TaskID,
			SubtaskID:  subtask.SubtaskID,
			ActorID:    agentID,
			IssuedAtMs: time.Now().UnixMilli(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"subtask": subtask, "allowSmallTasksOnly": decision.AllowSmallTasksOnly})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	var result queue.Result
	if err := decodeJSON(r, &result); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed request body"))
		return
	}
	result.AgentID = agentIDFromContext(r)

	released, err := s.deps.Queue.Complete(result)
	if err != nil {
		writeError(w, err)
		return
	}
	s.recordCompletion(result)

	writeJSON(w, http.StatusOK, map[string]any{"released": released})
}

// recordCompletion appends the task_complete ledger record and, for
// successful completions, credits the flat per-completion reward and
// earnings_accrual record (Scenario S2). Shared by the online /result path
// and the BLE offline-ledger replay path (§9 Supplemented features), both of
// which call queue.Queue.Complete first and then report the same outcome
// here.
func (s *Server) recordCompletion(result queue.Result) {
	now := time.Now().UnixMilli()
	if s.deps.Chain != nil {
		_, _ = s.deps.Chain.Append(ledger.AppendInput{
			EventType:  ledger.EventTaskComplete,
			TaskID:     result.TaskID,
			SubtaskID:  result.SubtaskID,
			ActorID:    result.AgentID,
			IssuedAtMs: now,
			Payload:    map[string]any{"ok": result.OK},
		})
	}

	if !result.OK || result.AgentID == "" {
		return
	}
	if s.deps.Accounts != nil {
		_ = s.deps.Accounts.Credit(result.AgentID, rewardCreditsPerCompletion)
	}
	if s.deps.Contributions != nil {
		_ = s.deps.Contributions.RecordContribution(result.AgentID, rewardCreditsPerCompletion, now)
	}
	if s.deps.Chain != nil {
		_, _ = s.deps.Chain.Append(ledger.AppendInput{
			EventType:  ledger.EventEarningsAccrual,
			TaskID:     result.TaskID,
			SubtaskID:  result.SubtaskID,
			ActorID:    result.AgentID,
			IssuedAtMs: now,
			Payload:    map[string]any{"creditedUnits": rewardCreditsPerCompletion},
		})
	}
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"coordinatorId": s.deps.CoordinatorID})
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"agentMesh":    s.deps.AgentMesh != nil,
		"orchestration": s.deps.Orch != nil,
		"treasury":     s.deps.Treasury != nil,
	})
}

func (s *Server) handleHealthRuntime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "agents": s.deps.Registry.Count()})
}

func (s *Server) handleCapacity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Queue.Status())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"queue":   s.deps.Queue.Status(),
		"peers":   len(s.deps.Mesh.ListPeers()),
		"tunnels": s.deps.AgentMesh.OpenTunnelCount(),
	})
}
