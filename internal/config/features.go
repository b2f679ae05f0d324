package config

import "github.com/joeshaw/envdecode"

// FeatureFlags is decoded with envdecode's struct-tag mechanism, a second
// config idiom living alongside Load()'s manual env reads — the corpus
// tends to accrete more than one config mechanism as a repo grows, and
// envdecode is a natural fit for a small, flat set of opt-in toggles that
// don't need the ceremony of the primary loader.
type FeatureFlags struct {
	ActiveInference   bool `env:"NOESIS_FEATURE_ACTIVE_INFERENCE,default=true"`
	CycleMemory       bool `env:"NOESIS_FEATURE_CYCLE_MEMORY,default=true"`
	SelfProduction    bool `env:"NOESIS_FEATURE_SELF_PRODUCTION,default=true"`
	AuditMirror       bool `env:"NOESIS_FEATURE_AUDIT_MIRROR,default=false"`
	Broadcast         bool `env:"NOESIS_FEATURE_BROADCAST,default=false"`
	ActiveWhenCoupled bool `env:"NOESIS_FEATURE_ACTIVE_WHEN_COUPLED,default=false"`
}

// DecodeFeatureFlags populates flags from the environment via envdecode.
func DecodeFeatureFlags(flags *FeatureFlags) error {
	return envdecode.Decode(flags)
}
