package agentconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/island-mesh/island/internal/errors"
	"github.com/island-mesh/island/internal/island/models"
	"github.com/island-mesh/island/internal/island/pba"
	"github.com/island-mesh/island/internal/island/repository"
	"github.com/island-mesh/island/internal/testutil"
)

type uploadedFiles map[pba.FileType]string

func (f uploadedFiles) Filename(ft pba.FileType) string {
	return f[ft]
}

func newService(t *testing.T, files uploadedFiles) (*Service, *repository.MemoryAgentConfigurationRepository) {
	t.Helper()
	repo := repository.NewMemoryAgentConfigurationRepository()
	return NewService(repo, files, testutil.NewTestLogger(t)), repo
}

func TestService_GetDefault(t *testing.T) {
	svc, _ := newService(t, uploadedFiles{pba.LinuxFile: "setup.sh"})

	cfg, err := svc.Get(context.Background())
	require.NoError(t, err)

	want := models.DefaultAgentConfiguration()
	want.CustomPBAs.LinuxFilename = "setup.sh"
	assert.Equal(t, want, cfg)
}

func TestService_SetFromJSON(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t, uploadedFiles{pba.WindowsFile: "run.ps1"})

	body := `{
		"keep_tunnel_open_time": 10,
		"custom_pbas": {"linux_command": "id", "linux_filename": "ignored.sh"},
		"payloads": [{"name": "Ransomware", "options": {"encrypt": true}}],
		"propagation": {
			"maximum_depth": 3,
			"network_scan": {
				"tcp": {"timeout": 2, "ports": [22, 445]},
				"icmp": {"timeout": 1},
				"fingerprinters": [],
				"targets": {"blocked_ips": ["10.0.0.1"], "inaccessible_subnets": [], "local_network_scan": false, "subnets": ["10.0.0.0/24", "10.0.1.1-10.0.1.9", "db.internal"]}
			},
			"exploitation": {"exploiters": [{"name": "SSH", "options": {}}]}
		}
	}`
	require.NoError(t, svc.SetFromJSON(ctx, []byte(body)))

	stored, err := repo.GetAgentConfiguration(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored.CustomPBAs.LinuxFilename)

	cfg, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10.0, cfg.KeepTunnelOpenTime)
	assert.Equal(t, "id", cfg.CustomPBAs.LinuxCommand)
	assert.Empty(t, cfg.CustomPBAs.LinuxFilename)
	assert.Equal(t, "run.ps1", cfg.CustomPBAs.WindowsFilename)
	assert.Equal(t, 3, cfg.Propagation.MaximumDepth)
	assert.Equal(t, []int{22, 445}, cfg.Propagation.NetworkScan.TCP.Ports)
	require.Len(t, cfg.Propagation.Exploitation.Exploiters, 1)
	assert.Equal(t, "SSH", cfg.Propagation.Exploitation.Exploiters[0].Name)
	// Omitted fields keep their defaults.
	assert.Empty(t, cfg.CredentialCollectors)
}

func TestService_SetFromJSON_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want errors.Kind
	}{
		{name: "not json", body: `{"keep_tunnel_open_time":`, want: errors.KindMalformedInput},
		{name: "unknown field", body: `{"keep_tunnel_open": 1}`, want: errors.KindMalformedInput},
		{name: "wrong field type", body: `{"keep_tunnel_open_time": "long"}`, want: errors.KindMalformedInput},
		{name: "trailing data", body: `{}]`, want: errors.KindMalformedInput},
		{name: "negative depth", body: `{"propagation": {"maximum_depth": -1}}`, want: errors.KindInvalidValue},
		{name: "port out of range", body: `{"propagation": {"network_scan": {"tcp": {"ports": [70000]}}}}`, want: errors.KindInvalidValue},
		{name: "blocked ip not an address", body: `{"propagation": {"network_scan": {"targets": {"blocked_ips": ["10.0.0.0/8"]}}}}`, want: errors.KindInvalidValue},
		{name: "backwards range", body: `{"propagation": {"network_scan": {"targets": {"subnets": ["10.0.0.9-10.0.0.1"]}}}}`, want: errors.KindInvalidValue},
		{name: "unnamed payload", body: `{"payloads": [{"name": " "}]}`, want: errors.KindInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, _ := newService(t, uploadedFiles{})

			err := svc.SetFromJSON(ctx, []byte(tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.want, errors.KindOf(err))

			cfg, err := svc.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, models.DefaultAgentConfiguration(), cfg)
		})
	}
}

func TestService_Reset(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, uploadedFiles{})

	require.NoError(t, svc.SetFromJSON(ctx, []byte(`{"keep_tunnel_open_time": 5}`)))
	require.NoError(t, svc.OnResetAgentConfiguration(ctx, nil))

	cfg, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAgentConfiguration(), cfg)
}
