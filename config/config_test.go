package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("MESH_AUTH_TOKEN", "test-token")
	t.Setenv("COORDINATOR_FEE_BPS", "200")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "test-token", cfg.MeshAuthToken)
	require.Equal(t, 200, cfg.CoordinatorFeeBps)
	require.Equal(t, int64(900000), cfg.PaymentIntentTTLMs)
	require.Equal(t, ":8080", cfg.ListenAddress)
}

func TestLoadRejectsMissingMeshAuthToken(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadParsesBootstrapStaticURLs(t *testing.T) {
	t.Setenv("MESH_AUTH_TOKEN", "t")
	t.Setenv("BOOTSTRAP_STATIC_URLS", "https://a.example, https://b.example")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.BootstrapStaticURLs)
}
