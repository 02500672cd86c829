package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/ingest"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
)

// TriagePolicy configures candidate identity matching. The angular tolerance
// is a deliberate, named parameter: it decides when two reported positions
// are the same astrophysical object.
type TriagePolicy struct {
	// DefaultToleranceArcsec applies to event types without an explicit
	// entry.
	DefaultToleranceArcsec float64 `yaml:"default_tolerance_arcsec"`
	// TolerancesArcsec overrides the tolerance per event type, keyed by the
	// wire names (GRAVITATIONAL_WAVE, GAMMA_RAY_BURST, NEUTRINO, UNKNOWN).
	TolerancesArcsec map[string]float64 `yaml:"tolerances_arcsec"`
}

// DefaultTriagePolicy returns the policy used when no file is configured.
func DefaultTriagePolicy() *TriagePolicy {
	return &TriagePolicy{
		DefaultToleranceArcsec: ingest.DefaultMatchToleranceArcsec,
	}
}

// LoadTriagePolicy reads a policy from a YAML file. An empty path returns
// the default policy.
func LoadTriagePolicy(path string) (*TriagePolicy, error) {
	if path == "" {
		return DefaultTriagePolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read triage policy %s: %w", path, err)
	}

	policy := DefaultTriagePolicy()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("failed to parse triage policy %s: %w", path, err)
	}
	if policy.DefaultToleranceArcsec <= 0 {
		return nil, fmt.Errorf("triage policy %s: default_tolerance_arcsec must be positive", path)
	}
	for name, tol := range policy.TolerancesArcsec {
		if tol <= 0 {
			return nil, fmt.Errorf("triage policy %s: tolerance for %s must be positive", path, name)
		}
	}
	return policy, nil
}

// ToleranceFor returns the match tolerance in arcseconds for an event type.
func (p *TriagePolicy) ToleranceFor(eventType model.EventType) float64 {
	if tol, ok := p.TolerancesArcsec[string(eventType)]; ok {
		return tol
	}
	return p.DefaultToleranceArcsec
}
