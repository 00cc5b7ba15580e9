package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles with gradual per-contract
// rollout. Buckets are assigned by a consistent hash of the contract
// ID, so a contract stays in its bucket across restarts.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	contractOverrides map[int64]map[string]bool // contractID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	ContractID int64
}

// Predefined feature flag names.
const (
	// === Messaging Features ===
	FeatureMessagingFirstLesson    = "messaging.first_lesson"    // Send the first lesson right after enrollment
	FeatureMessagingResultMessages = "messaging.result_messages" // Chat message with points after scoring

	// === Catalog Features ===
	FeatureCatalogRedisCache = "catalog.redis_cache" // Serve the course catalog through Redis
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:          make(map[string]*Feature),
		contractOverrides: make(map[int64]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureMessagingFirstLesson] = &Feature{
		Name:           FeatureMessagingFirstLesson,
		Description:    "Send the first lesson when a course is assigned",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureMessagingResultMessages] = &Feature{
		Name:           FeatureMessagingResultMessages,
		Description:    "Send the points summary after a scored test",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCatalogRedisCache] = &Feature{
		Name:           FeatureCatalogRedisCache,
		Description:    "Read the catalog through the Redis cache",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_CATALOG_REDIS_CACHE=false
// Example: FEATURE_MESSAGING_FIRST_LESSON=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		val := os.Getenv(envKey)
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "catalog.redis_cache" -> "FEATURE_CATALOG_REDIS_CACHE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check contract overrides first
	if ctx != nil && ctx.ContractID != 0 {
		if overrides, ok := ff.contractOverrides[ctx.ContractID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.ContractID != 0 {
		return ff.isInRollout(ctx.ContractID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a contract is in the rollout percentage.
func (ff *FeatureFlags) isInRollout(contractID int64, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(strconv.FormatInt(contractID, 10)))
	hash := h.Sum32()

	bucket := int(hash % 100)

	return bucket < percent
}

// SetContractOverride sets a feature override for a specific contract.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetContractOverride(contractID int64, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.contractOverrides[contractID]; !ok {
		ff.contractOverrides[contractID] = make(map[string]bool)
	}
	ff.contractOverrides[contractID][featureName] = enabled
}

// ClearContractOverrides removes all overrides for a contract.
func (ff *FeatureFlags) ClearContractOverrides(contractID int64) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.contractOverrides, contractID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
