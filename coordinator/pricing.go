package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"edgecoord/crypto"
	"edgecoord/economy/pricing"
	"edgecoord/mesh"
	"edgecoord/storage"
)

// selfQuoteWeight is the reputation weight this coordinator's own quote
// counts at in a consensus round: the same seed reputation a freshly-met
// peer starts at (mesh.ReputationMax/2), so a coordinator's own observation
// carries neither more nor less initial trust than a new peer's.
const selfQuoteWeight = 100

// pricingDriver implements httpapi.PricingDriver: the §4.7 local quote and
// peer-consensus operations, wired against this coordinator's own capacity
// signals, the live mesh peer table, and the persisted PriceEpoch mirror.
type pricingDriver struct {
	coordinatorID string
	signer        *crypto.SigningKey
	signals       *queueRegistryLoadSignals
	mesh          *mesh.Mesh
	store         *pricing.Store
	db            *gorm.DB
	log           *slog.Logger
}

func newPricingDriver(coordinatorID string, signer *crypto.SigningKey, signals *queueRegistryLoadSignals, m *mesh.Mesh, store *pricing.Store, db *gorm.DB, log *slog.Logger) *pricingDriver {
	return &pricingDriver{
		coordinatorID: coordinatorID,
		signer:        signer,
		signals:       signals,
		mesh:          m,
		store:         store,
		db:            db,
		log:           log,
	}
}

// LocalQuote computes this coordinator's own locally-observed price for
// resourceClass from live capacity signals (§4.7 quote) and signs it. This
// is what GET /economy/pricing/{resourceClass} returns, including to peers
// collecting it for their own consensus round.
func (d *pricingDriver) LocalQuote(resourceClass pricing.ResourceClass) pricing.PriceEpoch {
	signals := d.signals.capacitySignals()
	supply, demand := pricing.SupplyDemand(signals)
	epoch := pricing.PriceEpoch{
		EpochID:                 uuid.NewString(),
		CoordinatorID:           d.coordinatorID,
		ResourceClass:           resourceClass,
		PricePerComputeUnitSats: pricing.Quote(resourceClass, signals),
		SupplyIndex:             supply,
		DemandIndex:             demand,
		CreatedAtMs:             time.Now().UnixMilli(),
	}
	if err := epoch.Sign(d.signer); err != nil {
		d.log.Warn("pricing: sign local quote failed", "resourceClass", resourceClass, "err", err)
	}
	return epoch
}

// RunConsensus implements §4.7 consensus: collects this coordinator's own
// local quote plus every approved peer's quote over the mesh, computes the
// weighted median, signs and persists the result as resourceClass's current
// PriceEpoch, and broadcasts it.
func (d *pricingDriver) RunConsensus(ctx context.Context, resourceClass pricing.ResourceClass) (pricing.PriceEpoch, error) {
	self := d.LocalQuote(resourceClass)
	quotes := []pricing.PeerQuote{{
		CoordinatorID:    self.CoordinatorID,
		Price:            self.PricePerComputeUnitSats,
		ReputationWeight: selfQuoteWeight,
	}}
	quotes = append(quotes, d.mesh.CollectPriceQuotes(ctx, resourceClass)...)

	price, ok := pricing.WeightedMedian(quotes)
	if !ok {
		return pricing.PriceEpoch{}, fmt.Errorf("pricing: no quotes available for %s consensus", resourceClass)
	}

	negotiatedWith := make([]string, 0, len(quotes))
	for _, q := range quotes {
		if q.CoordinatorID != "" && q.CoordinatorID != d.coordinatorID {
			negotiatedWith = append(negotiatedWith, q.CoordinatorID)
		}
	}

	epoch := pricing.PriceEpoch{
		EpochID:                 uuid.NewString(),
		CoordinatorID:           d.coordinatorID,
		ResourceClass:           resourceClass,
		PricePerComputeUnitSats: price,
		SupplyIndex:             self.SupplyIndex,
		DemandIndex:             self.DemandIndex,
		NegotiatedWith:          negotiatedWith,
		CreatedAtMs:             time.Now().UnixMilli(),
	}
	if err := epoch.Sign(d.signer); err != nil {
		return pricing.PriceEpoch{}, fmt.Errorf("pricing: sign consensus epoch: %w", err)
	}

	d.store.Set(epoch)

	if err := persistPriceEpoch(d.db, epoch); err != nil {
		// The in-memory Store is the source of truth (§9); a persistence
		// failure is logged and left for the next consensus round to
		// retry, not surfaced as a request failure (§7).
		d.log.Warn("pricing: persist consensus epoch failed", "resourceClass", resourceClass, "err", err)
	}

	d.mesh.BroadcastPriceEpoch(epoch)
	return epoch, nil
}

// persistPriceEpoch mirrors a finalized consensus PriceEpoch into the
// persistent store (§3's PriceEpoch row), following loadLedgerSeed/
// loadBlacklistSeed's row-mapping convention in reverse (write instead of
// replay).
func persistPriceEpoch(db *gorm.DB, epoch pricing.PriceEpoch) error {
	negotiated, err := json.Marshal(epoch.NegotiatedWith)
	if err != nil {
		return fmt.Errorf("pricing: marshal negotiatedWith: %w", err)
	}
	row := storage.PriceEpochRow{
		EpochID:                 epoch.EpochID,
		CoordinatorID:           epoch.CoordinatorID,
		ResourceClass:           string(epoch.ResourceClass),
		PricePerComputeUnitSats: epoch.PricePerComputeUnitSats,
		SupplyIndex:             epoch.SupplyIndex,
		DemandIndex:             epoch.DemandIndex,
		NegotiatedWithJSON:      string(negotiated),
		Signature:               epoch.Signature,
		CreatedAtMs:             epoch.CreatedAtMs,
		UpdatedAtMs:             epoch.CreatedAtMs,
	}
	return db.Create(&row).Error
}
