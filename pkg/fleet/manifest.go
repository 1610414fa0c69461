package fleet

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/paddock-io/paddock/pkg/types"
)

// Manifest is the YAML file format for declaring deployments up front.
// Durations are written as Go duration strings ("30s", "2m").
type Manifest struct {
	Deployments []ManifestDeployment `yaml:"deployments"`
}

// ManifestDeployment is one deployment entry in a manifest.
type ManifestDeployment struct {
	Name        string         `yaml:"name"`
	Mode        string         `yaml:"mode,omitempty"`
	CodeVersion string         `yaml:"code_version,omitempty"`
	Command     []string       `yaml:"command,omitempty"`
	Replicas    int            `yaml:"replicas,omitempty"`
	UserConfig  map[string]any `yaml:"user_config,omitempty"`

	HealthCheckPeriod        string `yaml:"health_check_period,omitempty"`
	HealthCheckTimeout       string `yaml:"health_check_timeout,omitempty"`
	GracefulShutdownTimeout  string `yaml:"graceful_shutdown_timeout,omitempty"`
	GracefulShutdownWaitLoop string `yaml:"graceful_shutdown_wait_loop,omitempty"`
	MaxConcurrentRequests    int    `yaml:"max_concurrent_requests,omitempty"`
	RollingUpdateBatch       int    `yaml:"rolling_update_batch,omitempty"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	seen := make(map[string]bool)
	for i, d := range m.Deployments {
		if d.Name == "" {
			return nil, fmt.Errorf("deployment %d: name is required", i)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("duplicate deployment name: %s", d.Name)
		}
		seen[d.Name] = true
	}
	return &m, nil
}

// Spec converts a manifest entry into a deployment spec.
func (d ManifestDeployment) Spec() (*types.DeploymentSpec, error) {
	mode := types.DeploymentMode(d.Mode)
	switch mode {
	case "", types.DeploymentModeReplicated:
		mode = types.DeploymentModeReplicated
	case types.DeploymentModeGlobal:
	default:
		return nil, fmt.Errorf("deployment %s: unknown mode %q", d.Name, d.Mode)
	}

	cfg := types.DeploymentConfig{
		Replicas:              d.Replicas,
		UserConfig:            d.UserConfig,
		MaxConcurrentRequests: d.MaxConcurrentRequests,
		RollingUpdateBatch:    d.RollingUpdateBatch,
	}

	for _, f := range []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{d.HealthCheckPeriod, &cfg.HealthCheckPeriod, "health_check_period"},
		{d.HealthCheckTimeout, &cfg.HealthCheckTimeout, "health_check_timeout"},
		{d.GracefulShutdownTimeout, &cfg.GracefulShutdownTimeout, "graceful_shutdown_timeout"},
		{d.GracefulShutdownWaitLoop, &cfg.GracefulShutdownWaitLoop, "graceful_shutdown_wait_loop"},
	} {
		if f.raw == "" {
			continue
		}
		dur, err := time.ParseDuration(f.raw)
		if err != nil {
			return nil, fmt.Errorf("deployment %s: invalid %s: %w", d.Name, f.name, err)
		}
		*f.dst = dur
	}

	return &types.DeploymentSpec{
		Name:        d.Name,
		Mode:        mode,
		CodeVersion: d.CodeVersion,
		Config:      cfg,
		Command:     d.Command,
	}, nil
}
