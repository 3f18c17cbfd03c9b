// Package coordinatorerr defines the stable wire-level error taxonomy shared
// across every coordinator subsystem (§7 of the specification). Handlers
// translate an *Error into an HTTP status and JSON body at the boundary;
// internal callers extract the *Error with As and compare its Code.
package coordinatorerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, wire-visible error string. Never rename a Code once
// shipped — callers (agents, peer coordinators) match on the literal value.
type Code string

const (
	// Auth
	CodeMeshUnauthorized       Code = "mesh_unauthorized"
	CodeNodeNotActivated       Code = "node_not_activated"
	CodeNodeNotEnrolled        Code = "node_not_enrolled"
	CodeRegistrationTokenBad   Code = "registration_token_invalid"
	CodeCoordinatorNotApproved Code = "coordinator_not_approved"
	CodeSessionOwnerMismatch   Code = "session_owner_mismatch"

	// State
	CodeTaskNotFound      Code = "task_not_found"
	CodeTaskNotClaimable  Code = "task_not_claimable"
	CodeOfferNotAvailable Code = "offer_not_available"
	CodeTunnelNotFound    Code = "tunnel_not_found"
	CodeIntentNotFound    Code = "intent_not_found"
	CodeIntentExpired     Code = "intent_expired"
	CodePolicyNotFound    Code = "policy_not_found"

	// Policy
	CodeAgentBlacklisted        Code = "agent_blacklisted"
	CodeContributeFirstRequired Code = "contribute_first_required"
	CodeInsufficientCredits     Code = "insufficient_credits"
	CodeCapabilityMismatch      Code = "capability_mismatch"
	CodeDuplicateTxRefRejected  Code = "duplicate_tx_ref_rejected"
	CodeTreasuryPolicyViolation Code = "treasury_policy_violation"
	CodeReserveFloorBreached    Code = "reserve_floor_breached"

	// Rate
	CodePeerRateLimited            Code = "peer_rate_limited"
	CodeRelayRateLimited           Code = "relay_rate_limited"
	CodeTunnelRelayCapReached      Code = "tunnel_relay_cap_reached"
	CodeDirectWorkOfferRateLimited Code = "direct_work_offer_rate_limited"

	// Protocol
	CodeBadSignature                       Code = "bad_signature"
	CodeMessageExpired                      Code = "message_expired"
	CodeDuplicateMessage                    Code = "duplicate_message"
	CodeInvalidBlacklistPayload             Code = "invalid_blacklist_payload"
	CodeReporterSignatureInvalidForReason   Code = "reporter_signature_invalid_for_reason_code"
	CodePeerUnknown                         Code = "peer_unknown"

	// Validation
	CodeValidationError Code = "validation_error"
)

// defaultStatus maps each taxonomy code to the HTTP status a handler should
// return absent a more specific override.
var defaultStatus = map[Code]int{
	CodeMeshUnauthorized:                   http.StatusUnauthorized,
	CodeNodeNotActivated:                   http.StatusForbidden,
	CodeNodeNotEnrolled:                    http.StatusForbidden,
	CodeRegistrationTokenBad:               http.StatusForbidden,
	CodeCoordinatorNotApproved:             http.StatusForbidden,
	CodeSessionOwnerMismatch:               http.StatusForbidden,
	CodeTaskNotFound:                       http.StatusNotFound,
	CodeTaskNotClaimable:                   http.StatusConflict,
	CodeOfferNotAvailable:                  http.StatusConflict,
	CodeTunnelNotFound:                     http.StatusNotFound,
	CodeIntentNotFound:                     http.StatusNotFound,
	CodeIntentExpired:                      http.StatusGone,
	CodePolicyNotFound:                     http.StatusNotFound,
	CodeAgentBlacklisted:                   http.StatusForbidden,
	CodeContributeFirstRequired:            http.StatusPaymentRequired,
	CodeInsufficientCredits:                http.StatusPaymentRequired,
	CodeCapabilityMismatch:                 http.StatusUnprocessableEntity,
	CodeDuplicateTxRefRejected:             http.StatusConflict,
	CodeTreasuryPolicyViolation:            http.StatusUnprocessableEntity,
	CodeReserveFloorBreached:               http.StatusConflict,
	CodePeerRateLimited:                    http.StatusTooManyRequests,
	CodeRelayRateLimited:                   http.StatusTooManyRequests,
	CodeTunnelRelayCapReached:              http.StatusTooManyRequests,
	CodeDirectWorkOfferRateLimited:         http.StatusTooManyRequests,
	CodeBadSignature:                       http.StatusUnauthorized,
	CodeMessageExpired:                     http.StatusUnauthorized,
	CodeDuplicateMessage:                   http.StatusConflict,
	CodeInvalidBlacklistPayload:            http.StatusBadRequest,
	CodeReporterSignatureInvalidForReason:  http.StatusBadRequest,
	CodePeerUnknown:                        http.StatusUnauthorized,
	CodeValidationError:                    http.StatusBadRequest,
}

// Error is the internal representation of a taxonomy error. Recoverable
// errors surface as 4xx with Code as the wire string; Upstream wraps
// portal/payment-provider failures and surfaces as 5xx.
type Error struct {
	Code     Code
	Message  string
	Status   int
	Upstream bool
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Code)
}

// HTTPStatus returns the status this error should be written with.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	if e.Upstream {
		return http.StatusBadGateway
	}
	if status, ok := defaultStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New builds a taxonomy error with the default status for Code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a taxonomy error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Upstreamf builds a 5xx taxonomy error representing an external collaborator
// failure (portal, payment provider, persistent store).
func Upstreamf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Upstream: true}
}

// As extracts an *Error from err, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
