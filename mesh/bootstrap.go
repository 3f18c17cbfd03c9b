package mesh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/miekg/dns"
)

const identityFetchTimeout = 5 * time.Second

// BootstrapConfig names every source the discovery chain consults, in
// priority order: external registry, on-disk cache, static env URLs, DNS
// SRV (§4.5 Bootstrap).
type BootstrapConfig struct {
	RegistryURL string
	CachePath   string
	StaticURLs  []string
	SRVName     string
	DNSServer   string // e.g. "1.1.1.1:53"; empty disables SRV discovery
}

type cacheFile struct {
	Peers []PeerIdentity `json:"peers"`
}

// Bootstrap discovers peer candidate URLs via the priority chain, fetches
// `GET /identity` from each, announces this coordinator via
// `POST /mesh/register-peer`, registers every peer that answered, and
// rewrites the on-disk cache after a successful round.
func (m *Mesh) Bootstrap(ctx context.Context, cfg BootstrapConfig, selfIdentity PeerIdentity) (int, error) {
	urls := m.candidateURLs(ctx, cfg)
	if len(urls) == 0 {
		return 0, nil
	}

	client := &http.Client{Timeout: identityFetchTimeout}
	var discovered []PeerIdentity
	admitted := 0

	for _, url := range urls {
		identity, err := fetchIdentity(ctx, client, url)
		if err != nil {
			m.log.Warn("mesh: bootstrap candidate unreachable", "url", url, "err", err)
			continue
		}
		if identity.PeerID == m.selfID {
			continue
		}
		m.AddPeer(identity, false)
		discovered = append(discovered, identity)
		admitted++

		if err := announceSelf(ctx, client, identity.URL, selfIdentity); err != nil {
			m.log.Warn("mesh: register-peer announce failed", "url", identity.URL, "err", err)
		}
	}

	if admitted > 0 && cfg.CachePath != "" {
		if err := writeCache(cfg.CachePath, discovered); err != nil {
			m.log.Warn("mesh: rewrite bootstrap cache failed", "path", cfg.CachePath, "err", err)
		}
	}

	return admitted, nil
}

// candidateURLs resolves the discovery chain in priority order, returning
// the first non-empty source: registry URL, disk cache, static env URLs,
// DNS SRV.
func (m *Mesh) candidateURLs(ctx context.Context, cfg BootstrapConfig) []string {
	if cfg.RegistryURL != "" {
		if urls, err := fetchRegistryURLs(ctx, cfg.RegistryURL); err == nil && len(urls) > 0 {
			return urls
		} else if err != nil {
			m.log.Warn("mesh: registry lookup failed, falling back", "err", err)
		}
	}

	if cfg.CachePath != "" {
		if urls, err := readCacheURLs(cfg.CachePath); err == nil && len(urls) > 0 {
			return urls
		}
	}

	if len(cfg.StaticURLs) > 0 {
		return cfg.StaticURLs
	}

	if cfg.SRVName != "" && cfg.DNSServer != "" {
		urls, err := resolveSRV(cfg.SRVName, cfg.DNSServer)
		if err != nil {
			m.log.Warn("mesh: dns srv lookup failed", "name", cfg.SRVName, "err", err)
			return nil
		}
		return urls
	}

	return nil
}

func fetchIdentity(ctx context.Context, client *http.Client, url string) (PeerIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/identity", nil)
	if err != nil {
		return PeerIdentity{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return PeerIdentity{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return PeerIdentity{}, fmt.Errorf("identity fetch: unexpected status %d", resp.StatusCode)
	}
	var identity PeerIdentity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return PeerIdentity{}, fmt.Errorf("identity fetch: decode: %w", err)
	}
	if identity.URL == "" {
		identity.URL = url
	}
	return identity, nil
}

func announceSelf(ctx context.Context, client *http.Client, peerURL string, self PeerIdentity) error {
	body, err := json.Marshal(self)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peerURL+"/mesh/register-peer", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("register-peer: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func fetchRegistryURLs(ctx context.Context, registryURL string) ([]string, error) {
	client := &http.Client{Timeout: identityFetchTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, registryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry lookup: unexpected status %d", resp.StatusCode)
	}
	var payload struct {
		URLs []string `json:"urls"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.URLs, nil
}

func readCacheURLs(path string) ([]string, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var cache cacheFile
	if err := json.Unmarshal(raw, &cache); err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(cache.Peers))
	for _, p := range cache.Peers {
		urls = append(urls, p.URL)
	}
	return urls, nil
}

func writeCache(path string, peers []PeerIdentity) error {
	raw, err := json.Marshal(cacheFile{Peers: peers})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(path), raw, 0o600)
}

// resolveSRV performs a DNS SRV lookup for name against server, returning
// "https://host:port" candidate URLs ordered by priority/weight as the
// resolver returned them.
func resolveSRV(name, server string) ([]string, error) {
	client := new(dns.Client)
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeSRV)

	resp, _, err := client.Exchange(msg, server)
	if err != nil {
		return nil, fmt.Errorf("dns exchange: %w", err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns exchange: rcode %d", resp.Rcode)
	}

	urls := make([]string, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		urls = append(urls, fmt.Sprintf("https://%s:%d", trimTrailingDot(srv.Target), srv.Port))
	}
	return urls, nil
}

func trimTrailingDot(s string) string {
	if len(s) > 0 && s[len(s)-1] == '.' {
		return s[:len(s)-1]
	}
	return s
}
