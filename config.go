package rankalloc

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the configuration of an Allocator.
//
// Every rank must construct its allocator from an identical Config; the
// rebalancing decision is only reproducible across ranks under that condition.
type Config struct {
	// Name identifies the allocator in logs and metrics (e.g., "walkers").
	Name string `yaml:"name"`

	// NBlock is the number of blocks the key space is partitioned into.
	// When 0, NBlockPerRank * nrank is used.
	NBlock int `yaml:"nblock"`

	// NBlockPerRank sizes the partition relative to the number of ranks when NBlock is 0.
	// More blocks allow finer-grained balancing at the cost of larger routing tables.
	NBlockPerRank int `yaml:"nblockPerRank"`

	// Period is the number of cycles between rebalancing attempts.
	// 0 disables dynamic balancing entirely.
	Period uint64 `yaml:"period"`

	// AcceptableImbalance is the tolerated fractional gap between the busiest and
	// laziest rank, in [0, 1]. A round is a null update when
	// time[laziest] > (1 - AcceptableImbalance) * time[busiest].
	AcceptableImbalance float64 `yaml:"acceptableImbalance"`

	// NNullUpdatesDeactivate is the number of consecutive null updates after which
	// balancing is switched off.
	NNullUpdatesDeactivate int `yaml:"nnullUpdatesDeactivate"`

	// HashSeed seeds the key to block hash. 0 uses unseeded xxh3.
	HashSeed uint64 `yaml:"hashSeed"`

	// CheckConsistency verifies the routing bijection after every migration.
	// Intended for debug builds and tests; costs O(nblock) per migration.
	CheckConsistency bool `yaml:"checkConsistency"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		Name:                   "default",
		NBlock:                 0,
		NBlockPerRank:          16,
		Period:                 10,
		AcceptableImbalance:    0.05,
		NNullUpdatesDeactivate: 20,
		HashSeed:               0,
		CheckConsistency:       false,
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Period and AcceptableImbalance are left untouched: zero is meaningful for both
// (balancing disabled, and zero tolerance respectively).
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.NBlock == 0 && cfg.NBlockPerRank == 0 {
		cfg.NBlockPerRank = defaults.NBlockPerRank
	}
	if cfg.NNullUpdatesDeactivate == 0 {
		cfg.NNullUpdatesDeactivate = defaults.NNullUpdatesDeactivate
	}
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - 0 <= AcceptableImbalance <= 1
//   - NBlock >= 1, or NBlock == 0 with NBlockPerRank >= 1
//   - NNullUpdatesDeactivate >= 1
//
// Returns:
//   - error: Validation error wrapping ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	// Rule 1: imbalance is a fraction
	if math.IsNaN(cfg.AcceptableImbalance) {
		return fmt.Errorf("AcceptableImbalance must be a number: %w", ErrInvalidConfig)
	}
	if cfg.AcceptableImbalance < 0 {
		return fmt.Errorf("AcceptableImbalance (%v) must be non-negative: %w", cfg.AcceptableImbalance, ErrInvalidConfig)
	}
	if cfg.AcceptableImbalance > 1 {
		return fmt.Errorf("AcceptableImbalance (%v) must not exceed 1: %w", cfg.AcceptableImbalance, ErrInvalidConfig)
	}

	// Rule 2: block count
	if cfg.NBlock < 0 {
		return fmt.Errorf("NBlock (%d) must be >= 1: %w", cfg.NBlock, ErrInvalidConfig)
	}
	if cfg.NBlock == 0 && cfg.NBlockPerRank < 1 {
		return fmt.Errorf("NBlockPerRank (%d) must be >= 1 when NBlock is unset: %w", cfg.NBlockPerRank, ErrInvalidConfig)
	}

	// Rule 3: deactivation threshold
	if cfg.NNullUpdatesDeactivate < 1 {
		return fmt.Errorf("NNullUpdatesDeactivate (%d) must be >= 1: %w", cfg.NNullUpdatesDeactivate, ErrInvalidConfig)
	}

	return nil
}

// ValidateWithWarnings logs warnings for valid but non-recommended values.
//
// This is called after Validate() in NewAllocator() once the number of ranks is known.
//
// Parameters:
//   - logger: Logger instance for warning output
//   - nrank: Number of participating ranks
func (cfg *Config) ValidateWithWarnings(logger Logger, nrank int) {
	nblock := cfg.resolveNBlock(nrank)

	if nrank > 1 && nblock < nrank {
		logger.Warn(
			"fewer blocks than ranks, some ranks will own no work",
			"allocator", cfg.Name,
			"nblock", nblock,
			"nrank", nrank,
		)
	} else if nrank > 1 && nblock < 2*nrank && cfg.Period > 0 {
		logger.Warn(
			"very coarse partition, balancing will quickly hit the single-block limit",
			"allocator", cfg.Name,
			"nblock", nblock,
			"recommended", 2*nrank,
		)
	}

	if cfg.Period > 0 && cfg.AcceptableImbalance == 0 {
		logger.Warn(
			"zero acceptable imbalance, every round with any noise will migrate a block",
			"allocator", cfg.Name,
		)
	}
}

func (cfg *Config) resolveNBlock(nrank int) int {
	if cfg.NBlock > 0 {
		return cfg.NBlock
	}

	return cfg.NBlockPerRank * nrank
}

// TestConfig returns a configuration suited to short deterministic tests.
//
// Returns:
//   - Config: Configuration rebalancing every cycle with consistency checks on
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.Name = "test"
	cfg.NBlockPerRank = 2
	cfg.Period = 1
	cfg.AcceptableImbalance = 0.1
	cfg.NNullUpdatesDeactivate = 3
	cfg.CheckConsistency = true

	return cfg
}

// ParseConfig decodes a YAML document into a Config with defaults applied.
//
// Parameters:
//   - data: YAML document
//
// Returns:
//   - Config: Decoded configuration
//   - error: Decoding or validation error
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	SetDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadConfig reads and decodes a YAML configuration file.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - Config: Decoded configuration with defaults applied
//   - error: I/O, decoding or validation error
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}
