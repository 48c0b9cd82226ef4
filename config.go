package pathoram

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

var (
	ErrInvalidConfig    = errors.New("invalid PathORAM configuration")
	ErrInvalidKey       = errors.New("invalid key")
	ErrInvalidDataSize  = errors.New("value exceeds maximum value size")
	ErrStashOverflow    = errors.New("stash overflow")
	ErrEncryptionFailed = errors.New("block encryption failed")
	ErrDecodeFailure    = errors.New("block decode or authentication failed")
	ErrShapeMismatch    = errors.New("path or bucket shape mismatch")
	ErrOutOfRange       = errors.New("node index out of range")
	ErrInvariant        = errors.New("path invariant violated")
)

// MaxLevels bounds the tree height so that node indices fit in an int32.
const MaxLevels = 30

// EvictionStrategy defines how blocks are evicted from stash to tree.
type EvictionStrategy int

const (
	// EvictLevelByLevel iterates levels from leaf to root, filling slots greedily.
	// This is the baseline strategy.
	EvictLevelByLevel EvictionStrategy = iota

	// EvictGreedyByDepth places each block at its deepest possible level first,
	// walking the stash once instead of once per level.
	EvictGreedyByDepth

	// EvictTwoPath follows every access with a second retrieve/evict round
	// on a fresh random path. Reduces stash size variance.
	EvictTwoPath
)

// String returns the name accepted by ParseEvictionStrategy.
func (s EvictionStrategy) String() string {
	switch s {
	case EvictLevelByLevel:
		return "level-by-level"
	case EvictGreedyByDepth:
		return "greedy-by-depth"
	case EvictTwoPath:
		return "two-path"
	default:
		return fmt.Sprintf("EvictionStrategy(%d)", int(s))
	}
}

// ParseEvictionStrategy maps a strategy name back to its value.
func ParseEvictionStrategy(name string) (EvictionStrategy, error) {
	switch name {
	case "", "level-by-level":
		return EvictLevelByLevel, nil
	case "greedy-by-depth":
		return EvictGreedyByDepth, nil
	case "two-path":
		return EvictTwoPath, nil
	}
	return 0, fmt.Errorf("%w: unknown eviction strategy %q", ErrInvalidConfig, name)
}

// Cipher names accepted by Config.Cipher.
const (
	CipherAESGCM     = "aes-gcm"
	CipherXChaCha    = "xchacha20poly1305"
	CipherTinkAESGCM = "tink-aes256-gcm"
)

// Config holds PathORAM configuration parameters.
type Config struct {
	NumLevels        int              `yaml:"num_levels"`     // Tree levels L (root = level 0)
	BucketSize       int              `yaml:"bucket_size"`    // Number of slots per bucket (Z parameter)
	StashLimit       int              `yaml:"stash_limit"`    // Maximum stash size before error
	MaxKeySize       int              `yaml:"max_key_size"`   // Largest key in bytes
	MaxValueSize     int              `yaml:"max_value_size"` // Largest value in bytes
	EvictionStrategy EvictionStrategy `yaml:"-"`              // Eviction strategy to use
	Eviction         string           `yaml:"eviction"`       // Strategy name, used when loading from YAML
	ConstantTime     bool             `yaml:"constant_time"`  // Scan the whole stash on every lookup
	Cipher           string           `yaml:"cipher"`         // AEAD used by NewCodecFromConfig
}

// Validate checks the configuration for errors and applies defaults.
// Returns a copy of the config with defaults applied.
func (c Config) Validate() (Config, error) {
	if c.NumLevels <= 0 || c.NumLevels > MaxLevels {
		return c, fmt.Errorf("%w: num_levels must be in [1, %d], got %d", ErrInvalidConfig, MaxLevels, c.NumLevels)
	}
	if c.BucketSize < 0 || c.StashLimit < 0 || c.MaxKeySize < 0 || c.MaxValueSize < 0 {
		return c, fmt.Errorf("%w: sizes must not be negative", ErrInvalidConfig)
	}
	if c.BucketSize == 0 {
		c.BucketSize = 4
	}
	if c.StashLimit == 0 {
		c.StashLimit = 100
	}
	if c.MaxKeySize == 0 {
		c.MaxKeySize = 64
	}
	if c.MaxValueSize == 0 {
		c.MaxValueSize = 256
	}
	if c.Cipher == "" {
		c.Cipher = CipherAESGCM
	}
	switch c.Cipher {
	case CipherAESGCM, CipherXChaCha, CipherTinkAESGCM:
	default:
		return c, fmt.Errorf("%w: unknown cipher %q", ErrInvalidConfig, c.Cipher)
	}
	if c.Eviction != "" {
		s, err := ParseEvictionStrategy(c.Eviction)
		if err != nil {
			return c, err
		}
		c.EvictionStrategy = s
	}
	if c.EvictionStrategy < EvictLevelByLevel || c.EvictionStrategy > EvictTwoPath {
		return c, fmt.Errorf("%w: %v", ErrInvalidConfig, c.EvictionStrategy)
	}
	return c, nil
}

// LoadConfig reads a YAML config file and validates it.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg.Validate()
}
