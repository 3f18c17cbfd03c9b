// Package config loads the coordinator's environment-driven configuration
// (§6 "Environment knobs that affect protocol behavior must be read at
// start"), following the teacher's gateway/config.Load shape: typed
// defaults, an optional YAML overlay, then env var overrides, validated
// before the process wires its subsystems.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the coordinator process's full environment-derived surface.
type Config struct {
	ListenAddress string        `yaml:"listen"`
	Environment   string        `yaml:"environment"`
	CoordinatorID string        `yaml:"coordinatorId"`
	ReadTimeout   time.Duration `yaml:"readTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
	IdleTimeout   time.Duration `yaml:"idleTimeout"`

	MeshAuthToken     string `yaml:"meshAuthToken"`
	PortalServiceURL   string `yaml:"portalServiceUrl"`
	PortalServiceToken string `yaml:"portalServiceToken"`

	CoordinatorFeeBps          int   `yaml:"coordinatorFeeBps"`
	PaymentIntentTTLMs         int64 `yaml:"paymentIntentTtlMs"`
	IssuanceWindowMs           int64 `yaml:"issuanceWindowMs"`
	IssuanceRecalcMs           int64 `yaml:"issuanceRecalcMs"`
	AnchorIntervalMs           int64 `yaml:"anchorIntervalMs"`
	TunnelIdleTTLMs            int64 `yaml:"tunnelIdleTtlMs"`
	TunnelMaxRelaysPerMin      int   `yaml:"tunnelMaxRelaysPerMin"`
	IOSBatteryTaskStopLevelPct int   `yaml:"iosBatteryTaskStopLevelPct"`

	MeshRateLimitPer10s int `yaml:"meshRateLimitPer10s"`

	DatabaseDriver string `yaml:"databaseDriver"` // "sqlite" (dev) or "postgres" (prod)
	DatabaseDSN    string `yaml:"databaseDsn"`
	LevelDBPath    string `yaml:"levelDbPath"`

	BootstrapRegistryURL string   `yaml:"bootstrapRegistryUrl"`
	BootstrapCachePath   string   `yaml:"bootstrapCachePath"`
	BootstrapStaticURLs  []string `yaml:"bootstrapStaticUrls"`
	BootstrapDNSSRVName  string   `yaml:"bootstrapDnsSrvName"`
	BootstrapDNSServer   string   `yaml:"bootstrapDnsServer"`

	InvoiceProviderURL string `yaml:"invoiceProviderUrl"`
	AnchorServiceURL   string `yaml:"anchorServiceUrl"`

	SigningKeyPath string `yaml:"signingKeyPath"`
	BlacklistAuditLogPath string `yaml:"blacklistAuditLogPath"`

	IssuanceExportDir string `yaml:"issuanceExportDir"`
}

// defaults mirrors the §6-documented defaults exactly.
func defaults() Config {
	return Config{
		ListenAddress:              ":8080",
		Environment:                "dev",
		ReadTimeout:                30 * time.Second,
		WriteTimeout:               30 * time.Second,
		IdleTimeout:                120 * time.Second,
		CoordinatorFeeBps:          150,
		PaymentIntentTTLMs:         900000,
		IssuanceWindowMs:           24 * 60 * 60 * 1000,
		IssuanceRecalcMs:           60 * 60 * 1000,
		AnchorIntervalMs:           2 * 60 * 60 * 1000,
		TunnelIdleTTLMs:            5 * 60 * 1000,
		TunnelMaxRelaysPerMin:      30,
		IOSBatteryTaskStopLevelPct: 20,
		MeshRateLimitPer10s:        50,
		DatabaseDriver:             "sqlite",
		DatabaseDSN:                "coordinator.db",
		LevelDBPath:                "./data/leveldb",
		SigningKeyPath:             "./data/coordinator.key",
		BlacklistAuditLogPath:      "./data/blacklist-audit.log",
		IssuanceExportDir:          "./data/issuance-exports",
	}
}

// Load builds a Config from defaults, an optional YAML file at path (skipped
// if path is empty or missing), then environment variable overrides, in
// that order of increasing precedence.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnvOverrides() {
	strVar(&cfg.MeshAuthToken, "MESH_AUTH_TOKEN")
	strVar(&cfg.PortalServiceURL, "PORTAL_SERVICE_URL")
	strVar(&cfg.PortalServiceToken, "PORTAL_SERVICE_TOKEN")
	strVar(&cfg.CoordinatorID, "COORDINATOR_ID")
	strVar(&cfg.Environment, "ENVIRONMENT")
	strVar(&cfg.ListenAddress, "HTTP_LISTEN_ADDR")

	intVar(&cfg.CoordinatorFeeBps, "COORDINATOR_FEE_BPS")
	int64Var(&cfg.PaymentIntentTTLMs, "PAYMENT_INTENT_TTL_MS")
	int64Var(&cfg.IssuanceWindowMs, "ISSUANCE_WINDOW_MS")
	int64Var(&cfg.IssuanceRecalcMs, "ISSUANCE_RECALC_MS")
	int64Var(&cfg.AnchorIntervalMs, "ANCHOR_INTERVAL_MS")
	int64Var(&cfg.TunnelIdleTTLMs, "TUNNEL_IDLE_TTL_MS")
	intVar(&cfg.TunnelMaxRelaysPerMin, "TUNNEL_MAX_RELAYS_PER_MIN")
	intVar(&cfg.IOSBatteryTaskStopLevelPct, "IOS_BATTERY_TASK_STOP_LEVEL_PCT")

	strVar(&cfg.DatabaseDriver, "DATABASE_DRIVER")
	strVar(&cfg.DatabaseDSN, "DATABASE_DSN")
	strVar(&cfg.LevelDBPath, "LEVELDB_PATH")

	strVar(&cfg.BootstrapRegistryURL, "BOOTSTRAP_REGISTRY_URL")
	strVar(&cfg.BootstrapCachePath, "BOOTSTRAP_CACHE_PATH")
	strVar(&cfg.BootstrapDNSSRVName, "BOOTSTRAP_DNS_SRV_NAME")
	strVar(&cfg.BootstrapDNSServer, "BOOTSTRAP_DNS_SERVER")
	if raw := os.Getenv("BOOTSTRAP_STATIC_URLS"); raw != "" {
		cfg.BootstrapStaticURLs = splitTrim(raw, ",")
	}

	strVar(&cfg.InvoiceProviderURL, "INVOICE_PROVIDER_URL")
	strVar(&cfg.AnchorServiceURL, "ANCHOR_SERVICE_URL")
	strVar(&cfg.SigningKeyPath, "SIGNING_KEY_PATH")
	strVar(&cfg.BlacklistAuditLogPath, "BLACKLIST_AUDIT_LOG_PATH")
	strVar(&cfg.IssuanceExportDir, "ISSUANCE_EXPORT_DIR")
}

// Validate rejects configurations that would leave the coordinator unable
// to authenticate agents or peers.
func (cfg Config) Validate() error {
	if strings.TrimSpace(cfg.MeshAuthToken) == "" {
		return fmt.Errorf("config: MESH_AUTH_TOKEN must be set")
	}
	if cfg.CoordinatorFeeBps < 0 || cfg.CoordinatorFeeBps > 10000 {
		return fmt.Errorf("config: COORDINATOR_FEE_BPS must be within [0, 10000]")
	}
	if cfg.TunnelMaxRelaysPerMin <= 0 {
		return fmt.Errorf("config: TUNNEL_MAX_RELAYS_PER_MIN must be positive")
	}
	return nil
}

func strVar(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func intVar(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func int64Var(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func splitTrim(raw, sep string) []string {
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
