package mesh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"edgecoord/economy/pricing"
)

// CollectPriceQuotes implements the network half of §4.7 consensus:
// "broadcasts a GET /economy/price/quote to each approved peer, collecting
// {coordinatorId, price, reputationWeight} tuples." Each approved peer's
// live local quote (served by its own GET /economy/pricing/{resourceClass})
// is weighted by that peer's current reputation in this coordinator's peer
// table. An unreachable or non-200 peer is skipped and logged — a failed
// collection never blocks or errors the caller, the same fire-and-forget
// tolerance Broadcast applies to outbound gossip.
func (m *Mesh) CollectPriceQuotes(ctx context.Context, resourceClass pricing.ResourceClass) []pricing.PeerQuote {
	peers := m.table.List()
	quotes := make([]pricing.PeerQuote, 0, len(peers))
	for _, peer := range peers {
		if !peer.Approved {
			continue
		}
		epoch, err := fetchPeerQuote(ctx, m.client, peer.Identity.URL, resourceClass)
		if err != nil {
			m.log.Warn("mesh: price quote collection failed", "peer", peer.Identity.PeerID, "err", err)
			continue
		}
		quotes = append(quotes, pricing.PeerQuote{
			CoordinatorID:    epoch.CoordinatorID,
			Price:            epoch.PricePerComputeUnitSats,
			ReputationWeight: peer.Reputation,
		})
	}
	return quotes
}

func fetchPeerQuote(ctx context.Context, client *http.Client, peerURL string, resourceClass pricing.ResourceClass) (pricing.PriceEpoch, error) {
	ctx, cancel := context.WithTimeout(ctx, broadcastTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peerURL+"/economy/pricing/"+string(resourceClass), nil)
	if err != nil {
		return pricing.PriceEpoch{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return pricing.PriceEpoch{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return pricing.PriceEpoch{}, fmt.Errorf("price quote: unexpected status %d", resp.StatusCode)
	}
	var epoch pricing.PriceEpoch
	if err := json.NewDecoder(resp.Body).Decode(&epoch); err != nil {
		return pricing.PriceEpoch{}, fmt.Errorf("price quote: decode: %w", err)
	}
	return epoch, nil
}

// BroadcastPriceEpoch announces a freshly finalized consensus PriceEpoch to
// every known peer, fire-and-forget, the same delivery discipline
// Broadcast uses for signed gossip envelopes (§4.7: "Result is persisted as
// a PriceEpoch per resource class and broadcast"). Delivery is a plain
// economy-surface POST rather than a signed envelope, matching the plain
// GET a peer already uses to collect this coordinator's quote.
func (m *Mesh) BroadcastPriceEpoch(epoch pricing.PriceEpoch) {
	peers := m.table.List()
	for _, peer := range peers {
		go m.deliverPriceEpoch(peer, epoch)
	}
}

func (m *Mesh) deliverPriceEpoch(peer Peer, epoch pricing.PriceEpoch) {
	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()

	body, err := json.Marshal(epoch)
	if err != nil {
		m.log.Warn("mesh: marshal price epoch for broadcast failed", "peer", peer.Identity.PeerID, "err", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peer.Identity.URL+"/economy/pricing/announce", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.client.Do(req)
	if err != nil {
		m.log.Warn("mesh: price epoch broadcast failed", "peer", peer.Identity.PeerID, "err", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		m.log.Warn("mesh: price epoch broadcast rejected", "peer", peer.Identity.PeerID, "status", resp.StatusCode)
	}
}
