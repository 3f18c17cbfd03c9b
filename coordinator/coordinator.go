package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"edgecoord/agentmesh"
	"edgecoord/blacklist"
	"edgecoord/config"
	"edgecoord/crypto"
	"edgecoord/economy/issuance"
	"edgecoord/economy/payments"
	"edgecoord/economy/pricing"
	"edgecoord/economy/treasury"
	"edgecoord/httpapi"
	"edgecoord/integrations/exports"
	"edgecoord/ledger"
	"edgecoord/mesh"
	"edgecoord/middleware"
	"edgecoord/observability/logging"
	"edgecoord/orchestration"
	"edgecoord/protocol"
	"edgecoord/queue"
	"edgecoord/registry"
	"edgecoord/storage"

	"gorm.io/gorm"
)

const (
	staleClaimTimeoutMs = 5 * 60 * 1000
	staleClaimTickMs    = 15 * time.Second
	reconcileTick       = 30 * time.Second
	bootstrapTick       = 45 * time.Second
	agentMeshGCTick      = 60 * time.Second
)

// Coordinator is the single process-scope aggregate: every subsystem package
// wired together behind one HTTP boundary, per component table §2.
type Coordinator struct {
	cfg config.Config
	log *slog.Logger

	db     *gorm.DB
	signer *crypto.SigningKey

	queue     *queue.Queue
	chain     *ledger.Chain
	blacklist *blacklist.Chain
	registry  *registry.Registry
	mesh      *mesh.Mesh
	pricing   *pricing.Store
	issuance  *issuance.Engine
	payments  *payments.Processor
	treasury  *treasury.Vault
	agentMesh *agentmesh.Manager
	orch      *orchestration.Registry

	handler http.Handler
	server  *http.Server

	cancel context.CancelFunc
}

// New loads persisted state and wires every subsystem collaborator for a
// coordinator process identified by cfg.CoordinatorID (§9 init).
func New(cfg config.Config) (*Coordinator, error) {
	logger := logging.Setup("edgecoord", cfg.Environment)

	db, err := storage.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("coordinator: open storage: %w", err)
	}

	signer, err := loadOrGenerateSigningKey(cfg.SigningKeyPath)
	if err != nil {
		return nil, fmt.Errorf("coordinator: load signing key: %w", err)
	}
	if cfg.CoordinatorID == "" {
		cfg.CoordinatorID = signer.PublicKeyHex()[:16]
	}

	ledgerSeed, err := loadLedgerSeed(db)
	if err != nil {
		return nil, fmt.Errorf("coordinator: replay ledger: %w", err)
	}
	chain := ledger.New(cfg.CoordinatorID, signer, ledgerSeed)

	blacklistSeed, err := loadBlacklistSeed(db)
	if err != nil {
		return nil, fmt.Errorf("coordinator: replay blacklist: %w", err)
	}
	blacklistChain := blacklist.New(cfg.CoordinatorID, signer, blacklistSeed, cfg.BlacklistAuditLogPath)

	q := queue.New()

	portal := newHTTPPortalClient(cfg.PortalServiceURL, cfg.PortalServiceToken)
	reg := registry.New(portal, blacklistCheckerAdapter{isBlacklistedNow: blacklistChain.IsBlacklistedNow}, chain, []byte(cfg.MeshAuthToken), registry.DefaultPowerPolicyParams())

	meshInst, err := mesh.New(cfg.CoordinatorID, signer, mesh.Config{
		RatePer10s:      cfg.MeshRateLimitPer10s,
		DedupStorePath:  cfg.LevelDBPath,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("coordinator: init mesh: %w", err)
	}

	priceStore := pricing.NewStore()
	loadSignals := &queueRegistryLoadSignals{queue: q, registry: reg}
	quorum := &meshQuorumMembership{mesh: meshInst}
	anchorer := newHTTPAnchorer(cfg.AnchorServiceURL)
	issuanceEngine := issuance.New(cfg.CoordinatorID, &gormContributionWindow{db: db}, loadSignals, quorum, chain, anchorer, issuance.Config{
		WindowMs: cfg.IssuanceWindowMs,
	})

	accounts := newGormAccountLedger(db)
	invoiceProvider := newHTTPInvoiceProvider(cfg.InvoiceProviderURL)
	paymentsProcessor := payments.NewProcessor(invoiceProvider, accounts, &pricingSource{store: priceStore},
		payments.WithFeeBps(cfg.CoordinatorFeeBps),
		payments.WithIntentTTL(time.Duration(cfg.PaymentIntentTTLMs)*time.Millisecond),
	)

	treasuryVault := treasury.New(chain, treasury.Policy{}, 0)
	agentMeshMgr := agentmesh.New(agentmesh.Config{IdleTTLMs: cfg.TunnelIdleTTLMs, MaxRelaysPerMin: cfg.TunnelMaxRelaysPerMin})
	orchRegistry := orchestration.New()
	pricingDrv := newPricingDriver(cfg.CoordinatorID, signer, loadSignals, meshInst, priceStore, db, logger)

	std := log.New(logWriter{logger}, "", 0)
	observability := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName: "edgecoord-" + cfg.CoordinatorID,
		Enabled:     true,
		LogRequests: cfg.Environment == "dev",
	}, std)
	adminAuth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    cfg.PortalServiceToken != "",
		HMACSecret: cfg.PortalServiceToken,
	}, std)
	rateLimiter := middleware.NewRateLimiter(map[string]middleware.RateLimit{
		"agent": {RatePerSecond: float64(cfg.MeshRateLimitPer10s) / 10, Burst: cfg.MeshRateLimitPer10s},
	}, std)

	handler := httpapi.New(httpapi.Deps{
		Queue:               q,
		Registry:            reg,
		Mesh:                meshInst,
		Blacklist:           blacklistChain,
		Chain:               chain,
		PricingDriver:       pricingDrv,
		Issuance:            issuanceEngine,
		Payments:            paymentsProcessor,
		Treasury:            treasuryVault,
		AgentMesh:           agentMeshMgr,
		Orch:                orchRegistry,
		Accounts:            accounts,
		Contributions:       accounts,
		Observability:       observability,
		AdminAuth:           adminAuth,
		RateLimiter:         rateLimiter,
		CoordinatorID:       cfg.CoordinatorID,
		SigningPublicKeyHex: signer.PublicKeyHex(),
	})

	c := &Coordinator{
		cfg:       cfg,
		log:       logger,
		db:        db,
		signer:    signer,
		queue:     q,
		chain:     chain,
		blacklist: blacklistChain,
		registry:  reg,
		mesh:      meshInst,
		pricing:   priceStore,
		issuance:  issuanceEngine,
		payments:  paymentsProcessor,
		treasury:  treasuryVault,
		agentMesh: agentMeshMgr,
		orch:      orchRegistry,
		handler:   handler,
	}
	c.registerMeshHandlers()
	return c, nil
}

// registerMeshHandlers wires every inbound gossip message type to the
// subsystem it drives (§4.5 Message type dispatch).
func (c *Coordinator) registerMeshHandlers() {
	c.mesh.OnMessage(protocol.MessageQueueSummary, func(peerID string, env *protocol.Envelope) error {
		c.log.Debug("mesh: queue_summary received", "peer", peerID)
		return nil
	})

	c.mesh.OnMessage(protocol.MessageTaskClaim, func(peerID string, env *protocol.Envelope) error {
		var payload struct {
			SubtaskID string `json:"subtaskId"`
		}
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil
		}
		c.queue.MarkRemoteClaimed(payload.SubtaskID)
		return nil
	})

	c.mesh.OnMessage(protocol.MessageBlacklistUpdate, func(peerID string, env *protocol.Envelope) error {
		var rec blacklist.Record
		if err := json.Unmarshal(env.Payload, &rec); err != nil {
			return err
		}
		_, err := c.blacklist.Merge(rec)
		return err
	})

	c.mesh.OnMessage(protocol.MessageIssuanceVote, func(peerID string, env *protocol.Envelope) error {
		var vote issuance.Vote
		if err := json.Unmarshal(env.Payload, &vote); err != nil {
			return err
		}
		return c.issuance.RecordVote(vote)
	})

	c.mesh.OnMessage(protocol.MessageIssuanceCommit, func(peerID string, env *protocol.Envelope) error {
		c.log.Debug("mesh: issuance_commit received", "peer", peerID)
		return nil
	})

	c.mesh.OnMessage(protocol.MessageIssuanceCheckpoint, func(peerID string, env *protocol.Envelope) error {
		c.log.Debug("mesh: issuance_checkpoint received", "peer", peerID)
		return nil
	})
}

// Serve starts the HTTP boundary and every background timer (§5), blocking
// until the context is cancelled or ListenAndServe returns a fatal error.
func (c *Coordinator) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.server = &http.Server{
		Addr:         c.cfg.ListenAddress,
		Handler:      c.handler,
		ReadTimeout:  c.cfg.ReadTimeout,
		WriteTimeout: c.cfg.WriteTimeout,
		IdleTimeout:  c.cfg.IdleTimeout,
	}

	go c.runTimers(ctx)

	errCh := make(chan error, 1)
	go func() {
		c.log.Info("coordinator: listening", "addr", c.cfg.ListenAddress)
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (c *Coordinator) runTimers(ctx context.Context) {
	staleClaim := time.NewTicker(staleClaimTickMs)
	reconcile := time.NewTicker(reconcileTick)
	issuanceRecalc := time.NewTicker(tickerDuration(c.cfg.IssuanceRecalcMs))
	anchorTick := time.NewTicker(tickerDuration(c.cfg.AnchorIntervalMs))
	bootstrap := time.NewTicker(bootstrapTick)
	gc := time.NewTicker(agentMeshGCTick)
	defer staleClaim.Stop()
	defer reconcile.Stop()
	defer issuanceRecalc.Stop()
	defer anchorTick.Stop()
	defer bootstrap.Stop()
	defer gc.Stop()

	selfIdentity := mesh.PeerIdentity{PeerID: c.cfg.CoordinatorID, PublicKey: c.signer.PublicKeyHex(), URL: c.cfg.ListenAddress}
	bootstrapCfg := mesh.BootstrapConfig{
		RegistryURL: c.cfg.BootstrapRegistryURL,
		CachePath:   c.cfg.BootstrapCachePath,
		StaticURLs:  c.cfg.BootstrapStaticURLs,
		SRVName:     c.cfg.BootstrapDNSSRVName,
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-staleClaim.C:
			if n := c.queue.RequeueStale(staleClaimTimeoutMs); n > 0 {
				c.log.Info("coordinator: requeued stale claims", "count", n)
			}
		case <-reconcile.C:
			expired, settled := c.payments.Reconcile()
			if len(expired) > 0 || len(settled) > 0 {
				c.log.Info("coordinator: payment reconciliation", "expired", len(expired), "settled", len(settled))
			}
		case <-issuanceRecalc.C:
			if _, err := c.issuance.Propose(time.Now().UnixMilli()); err != nil {
				c.log.Warn("coordinator: issuance propose failed", "err", err)
			}
		case <-anchorTick.C:
			if _, err := c.issuance.Anchor(time.Now().UnixMilli()); err != nil {
				c.log.Debug("coordinator: issuance anchor skipped", "err", err)
				break
			}
			if epoch, ok := c.issuance.LatestFinalized(); ok {
				if path, err := exports.WriteEpoch(c.cfg.IssuanceExportDir, epoch); err != nil {
					c.log.Warn("coordinator: issuance export failed", "err", err)
				} else {
					c.log.Info("coordinator: wrote issuance export", "path", path)
				}
			}
		case <-bootstrap.C:
			if _, err := c.mesh.Bootstrap(ctx, bootstrapCfg, selfIdentity); err != nil {
				c.log.Warn("coordinator: bootstrap round failed", "err", err)
			}
		case <-gc.C:
			c.agentMesh.GC(time.Now().UnixMilli())
		}
	}
}

// tickerDuration converts a millisecond interval knob into a ticker period.
func tickerDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Shutdown gracefully drains the HTTP server and releases the mesh's
// on-disk dedup store handle.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	var shutdownErr error
	if c.server != nil {
		shutdownErr = c.server.Shutdown(ctx)
	}
	if err := c.mesh.Close(); err != nil && shutdownErr == nil {
		shutdownErr = err
	}
	return shutdownErr
}

// logWriter adapts an *slog.Logger to io.Writer for the teacher's
// log.Logger-based middleware constructors.
type logWriter struct {
	logger *slog.Logger
}

func (w logWriter) Write(p []byte) (int, error) {
	w.logger.Info(string(p))
	return len(p), nil
}
