package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"edgecoord/coordinatorerr"
	"edgecoord/economy/issuance"
	"edgecoord/economy/pricing"
	"edgecoord/economy/treasury"
)

// handlePricingQuote serves GET /economy/pricing/{resourceClass}: this
// coordinator's own live local quote (§4.7 quote), freshly computed from
// current capacity signals on every call — this is the endpoint a peer
// calls to collect our contribution to its own consensus round.
func (s *Server) handlePricingQuote(w http.ResponseWriter, r *http.Request) {
	resourceClass := pricing.ResourceClass(chi.URLParam(r, "resourceClass"))
	if resourceClass == "" {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "resourceClass is required"))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.PricingDriver.LocalQuote(resourceClass))
}

type pricingConsensusRequest struct {
	ResourceClass pricing.ResourceClass `json:"resourceClass"`
}

// handlePricingConsensus drives the §4.7 consensus operation: fan
// GET /economy/pricing/{resourceClass} out to every approved peer, weight
// by reputation, and persist + broadcast the resulting PriceEpoch. The
// caller supplies only the resource class — peer collection is the
// coordinator's own job, not the caller's.
func (s *Server) handlePricingConsensus(w http.ResponseWriter, r *http.Request) {
	var req pricingConsensusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed request body"))
		return
	}
	if req.ResourceClass == "" {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "resourceClass is required"))
		return
	}
	epoch, err := s.deps.PricingDriver.RunConsensus(r.Context(), req.ResourceClass)
	if err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, epoch)
}

// handlePricingAnnounce accepts a peer's broadcast consensus PriceEpoch
// (§4.7 "Result is persisted... and broadcast"). It only acknowledges
// receipt: a peer's broadcast is never applied to this coordinator's own
// stored epoch, since it is not an authoritative input to this
// coordinator's own payment pricing (§4.9's CurrentPriceSats reads only the
// local consensus result this coordinator itself finalized).
func (s *Server) handlePricingAnnounce(w http.ResponseWriter, r *http.Request) {
	var epoch pricing.PriceEpoch
	if err := decodeJSON(r, &epoch); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed request body"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type createIntentRequest struct {
	AccountID     string `json:"accountId"`
	CoordinatorID string `json:"coordinatorId"`
	WalletType    string `json:"walletType"`
	Network       string `json:"network"`
	AmountSats    int64  `json:"amountSats"`
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed request body"))
		return
	}
	intent, err := s.deps.Payments.CreateIntent(req.AccountID, req.CoordinatorID, req.WalletType, req.Network, req.AmountSats)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

func (s *Server) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	intentID := chi.URLParam(r, "intentID")
	intent, ok := s.deps.Payments.Get(intentID)
	if !ok {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeIntentNotFound, "intent not found"))
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

type settleRequest struct {
	IntentID string `json:"intentId"`
	TxRef    string `json:"txRef"`
}

// handleSettle validates the pending intent's payout economics against the
// treasury policy before handing it to the payments processor (§4.9/§4.10:
// treasury enforcement gates a settlement before its balance/reserve effects
// become irreversible), then applies the resulting reserve delta once
// Settle actually commits.
func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed request body"))
		return
	}

	if s.deps.Treasury != nil {
		if pending, ok := s.deps.Payments.Get(req.IntentID); ok {
			split := s.deps.Payments.PayoutSplit()
			reserveDelta := int64(split.ReserveShare * float64(pending.NetSats))
			if err := s.deps.Treasury.ValidatePayout(pending.CoordinatorFeeBps, split.CoordinatorShare, split.ReserveShare, reserveDelta); err != nil {
				writeError(w, err)
				return
			}
		}
	}

	intent, feeEvent, payoutEvent, err := s.deps.Payments.Settle(req.IntentID, req.TxRef)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.deps.Treasury != nil {
		s.deps.Treasury.ApplyReserveDelta(payoutEvent.ReserveSats)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"intent":      intent,
		"feeEvent":    feeEvent,
		"payoutEvent": payoutEvent,
	})
}

func (s *Server) handleIssuancePropose(w http.ResponseWriter, r *http.Request) {
	epoch, err := s.deps.Issuance.Propose(time.Now().UnixMilli())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, epoch)
}

func (s *Server) handleIssuanceVote(w http.ResponseWriter, r *http.Request) {
	var vote issuance.Vote
	if err := decodeJSON(r, &vote); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed request body"))
		return
	}
	if err := s.deps.Issuance.RecordVote(vote); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"recorded": true})
}

func (s *Server) handleIssuanceAnchor(w http.ResponseWriter, r *http.Request) {
	checkpoint, err := s.deps.Issuance.Anchor(time.Now().UnixMilli())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkpoint)
}

func (s *Server) handleGetTreasuryPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Treasury.Policy())
}

func (s *Server) handleSetTreasuryPolicy(w http.ResponseWriter, r *http.Request) {
	var next treasury.Policy
	if err := decodeJSON(r, &next); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed request body"))
		return
	}
	actorID := agentIDFromContext(r)
	if actorID == "" {
		actorID = s.deps.CoordinatorID
	}
	applied, err := s.deps.Treasury.SetPolicy(next, actorID, time.Now().UnixMilli())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, applied)
}

// handleRecordCustodyEvent records a treasury key-custody audit event
// (rotation or signer change, §3 "key-custody events"). keyId must be the
// bech32 address of the treasury signing key under custody, as printed by
// `coordinatorctl keystore-address` for the keystore file being rotated in
// or out.
func (s *Server) handleRecordCustodyEvent(w http.ResponseWriter, r *http.Request) {
	var event treasury.CustodyEvent
	if err := decodeJSON(r, &event); err != nil {
		writeError(w, coordinatorerr.New(coordinatorerr.CodeValidationError, "malformed request body"))
		return
	}
	event.ActorID = agentIDFromContext(r)
	if event.ActorID == "" {
		event.ActorID = s.deps.CoordinatorID
	}
	event.OccurredAtMs = time.Now().UnixMilli()
	record, err := s.deps.Treasury.RecordCustodyEvent(event)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
