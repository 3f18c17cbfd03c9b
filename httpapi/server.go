// Package httpapi implements the coordinator's HTTP boundary (§4, §6, C12):
// a chi router exposing the agent lifecycle, inter-coordinator gossip,
// ledger, blacklist, economy, agent-mesh, orchestration, and treasury
// surfaces, grounded on the teacher's gateway/routes/router.go composition
// of per-route middleware chains.
package httpapi

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"edgecoord/agentmesh"
	"edgecoord/blacklist"
	"edgecoord/economy/issuance"
	"edgecoord/economy/payments"
	"edgecoord/economy/pricing"
	"edgecoord/economy/treasury"
	"edgecoord/ledger"
	"edgecoord/ledger/offline"
	"edgecoord/mesh"
	"edgecoord/middleware"
	"edgecoord/orchestration"
	"edgecoord/queue"
	"edgecoord/registry"
)

// ContributionRecorder feeds a completed subtask's weighted contribution
// into the rolling window the issuance engine allocates against (§4.8 step
// 1). Implemented by the coordinator package's gorm-backed account ledger.
type ContributionRecorder interface {
	RecordContribution(accountID string, weight float64, nowMs int64) error
}

// PricingDriver implements the §4.7 C8 quote and consensus operations
// against live capacity signals and the mesh peer table. Implemented by the
// coordinator package.
type PricingDriver interface {
	// LocalQuote computes this coordinator's own live quote for
	// resourceClass; it is what GET /economy/pricing/{resourceClass}
	// returns, including to peers collecting it for their own consensus
	// round.
	LocalQuote(resourceClass pricing.ResourceClass) pricing.PriceEpoch
	// RunConsensus collects this coordinator's own quote plus every
	// approved peer's quote, computes the weighted median, and persists +
	// broadcasts the resulting PriceEpoch.
	RunConsensus(ctx context.Context, resourceClass pricing.ResourceClass) (pricing.PriceEpoch, error)
}

// Deps bundles every subsystem collaborator the HTTP boundary wires
// together. The coordinator package constructs one of these during init and
// passes it to New.
type Deps struct {
	Queue               *queue.Queue
	Registry            *registry.Registry
	Mesh                *mesh.Mesh
	Blacklist           *blacklist.Chain
	Chain               *ledger.Chain
	PricingDriver       PricingDriver
	Issuance            *issuance.Engine
	Payments            *payments.Processor
	Treasury            *treasury.Vault
	AgentMesh           *agentmesh.Manager
	Orch                *orchestration.Registry
	Accounts            payments.AccountLedger
	Contributions       ContributionRecorder
	OfflineVerifier     offline.SignatureVerifier
	Observability       *middleware.Observability
	AdminAuth           *middleware.Authenticator
	RateLimiter         *middleware.RateLimiter
	CoordinatorID       string
	SigningPublicKeyHex string
}

// Server holds the wired dependencies behind every handler.
type Server struct {
	deps Deps

	claimedMu  sync.Mutex
	claimedIDs map[string]struct{}

	offlineReconciler *offline.Reconciler
}

// New constructs the full chi router for the coordinator's HTTP boundary.
func New(deps Deps) http.Handler {
	s := &Server{deps: deps, claimedIDs: make(map[string]struct{})}
	s.offlineReconciler = offline.New(s, deps.OfflineVerifier)
	r := chi.NewRouter()

	r.Use(middleware.CORS(middleware.CORSConfig{}))
	if deps.Observability != nil {
		r.Use(deps.Observability.Middleware("root"))
		r.Handle("/metrics", deps.Observability.MetricsHandler())
	}

	r.Get("/identity", s.handleIdentity)
	r.Get("/features", s.handleFeatures)
	r.Get("/health/runtime", s.handleHealthRuntime)
	r.Get("/health/runtime/stream", s.handleHealthRuntimeStream)
	r.Get("/capacity", s.handleCapacity)
	r.Get("/status", s.handleStatus)
	r.Post("/register", s.handleRegister)

	r.Group(func(gr chi.Router) {
		gr.Use(s.meshTokenAuth)
		if deps.RateLimiter != nil {
			gr.Use(deps.RateLimiter.Middleware("agent"))
		}
		gr.Post("/heartbeat", s.handleHeartbeat)
		gr.Post("/submit", s.handleSubmit)
		gr.Post("/pull", s.handlePull)
		gr.Post("/result", s.handleResult)
	})

	r.Route("/mesh", func(mr chi.Router) {
		mr.Get("/peers", s.handleMeshPeers)
		mr.Post("/register-peer", s.handleMeshRegisterPeer)
		mr.Post("/ingest", s.handleMeshIngest)
		mr.Get("/reputation", s.handleMeshReputation)
	})

	r.Route("/ledger", func(lr chi.Router) {
		lr.Get("/snapshot", s.handleLedgerSnapshot)
		lr.Get("/verify", s.handleLedgerVerify)
	})

	r.Route("/security/blacklist", func(br chi.Router) {
		br.Get("/", s.handleBlacklistList)
		br.Post("/", s.handleBlacklistReport)
		br.Get("/audit", s.handleBlacklistAudit)
	})

	r.Route("/agent-mesh", func(ar chi.Router) {
		ar.Post("/offers", s.handleCreateOffer)
		ar.Post("/offers/{offerID}/accept", s.handleAcceptOffer)
		ar.Post("/tunnels/{tunnelID}/relay", s.handleTunnelRelay)
		ar.Post("/offline/replay", s.handleOfflineReplay)
	})

	r.Route("/economy", func(er chi.Router) {
		er.Get("/pricing/{resourceClass}", s.handlePricingQuote)
		er.Post("/pricing/consensus", s.handlePricingConsensus)
		er.Post("/pricing/announce", s.handlePricingAnnounce)
		er.Post("/payments/intents", s.handleCreateIntent)
		er.Get("/payments/intents/{intentID}", s.handleGetIntent)
		er.Post("/payments/settle", s.handleSettle)
		er.Post("/issuance/propose", s.handleIssuancePropose)
		er.Post("/issuance/vote", s.handleIssuanceVote)
		er.Post("/issuance/anchor", s.handleIssuanceAnchor)

		er.Group(func(tr chi.Router) {
			if deps.AdminAuth != nil {
				tr.Use(deps.AdminAuth.Middleware("treasury:admin"))
			}
			tr.Get("/treasury/policy", s.handleGetTreasuryPolicy)
			tr.Put("/treasury/policy", s.handleSetTreasuryPolicy)
			tr.Post("/treasury/custody-events", s.handleRecordCustodyEvent)
		})
	})

	r.Route("/orchestration", func(or chi.Router) {
		or.Get("/rollouts", s.handleListRollouts)
		or.Post("/rollouts", s.handleStageRollout)
	})

	return r
}
