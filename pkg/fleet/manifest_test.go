package fleet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddock-io/paddock/pkg/types"
)

const sampleManifest = `
deployments:
  - name: api
    code_version: v3
    command: ["./api-server", "--port=8000"]
    replicas: 4
    health_check_period: 5s
    graceful_shutdown_timeout: 30s
    user_config:
      pool_size: 10
  - name: node-agent
    mode: global
    command: ["./agent"]
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deployments.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadManifest(t *testing.T) {
	m, err := LoadManifest(writeManifest(t, sampleManifest))
	require.NoError(t, err)
	require.Len(t, m.Deployments, 2)

	spec, err := m.Deployments[0].Spec()
	require.NoError(t, err)
	assert.Equal(t, "api", spec.Name)
	assert.Equal(t, types.DeploymentModeReplicated, spec.Mode)
	assert.Equal(t, "v3", spec.CodeVersion)
	assert.Equal(t, []string{"./api-server", "--port=8000"}, spec.Command)
	assert.Equal(t, 4, spec.Config.Replicas)
	assert.Equal(t, 5*time.Second, spec.Config.HealthCheckPeriod)
	assert.Equal(t, 30*time.Second, spec.Config.GracefulShutdownTimeout)
	assert.Equal(t, 10, spec.Config.UserConfig["pool_size"])

	agent, err := m.Deployments[1].Spec()
	require.NoError(t, err)
	assert.Equal(t, types.DeploymentModeGlobal, agent.Mode)
}

func TestLoadManifestValidation(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{
			name:     "missing name",
			manifest: "deployments:\n  - replicas: 2\n",
		},
		{
			name:     "duplicate name",
			manifest: "deployments:\n  - name: a\n  - name: a\n",
		},
		{
			name:     "not yaml",
			manifest: "{{{",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadManifest(writeManifest(t, tt.manifest))
			assert.Error(t, err)
		})
	}
}

func TestManifestDeploymentSpecErrors(t *testing.T) {
	_, err := ManifestDeployment{Name: "a", Mode: "sharded"}.Spec()
	assert.Error(t, err, "unknown mode is rejected")

	_, err = ManifestDeployment{Name: "a", HealthCheckPeriod: "soon"}.Spec()
	assert.Error(t, err, "invalid duration is rejected")
}
