package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"personasim/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets names the KVv2 paths secrets are read from. An empty path
// leaves the matching setting as configured.
type VaultSecrets struct {
	// APIKeys holds a "keys" field with comma-separated server API keys.
	APIKeys string `mapstructure:"apiKeys"`
	// GeminiKey holds an "api_key" field.
	GeminiKey string `mapstructure:"geminiKey"`
	// TLSCerts holds "cert" and "key" PEM fields.
	TLSCerts string `mapstructure:"tlsCerts"`
	// RedisPassword holds a "password" field for the storage lock.
	RedisPassword string `mapstructure:"redisPassword"`
}

// VaultSecret is one KVv2 secret version.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// VaultClient reads KVv2 secrets.
type VaultClient struct {
	client *api.Client
	logger *errors.Logger
}

// NewVaultClient connects to Vault and checks its health. It returns a nil
// client when Vault is disabled.
func NewVaultClient(cfg VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if logger == nil {
		logger = errors.Discard()
	}
	if !cfg.Enabled {
		logger.Debug("Vault integration disabled")
		return nil, nil
	}

	apiCfg := api.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	token, err := resolveVaultToken(cfg, logger)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		logger.LogError(err, "Failed to connect to Vault", "address", apiCfg.Address)
		return nil, fmt.Errorf("failed to connect to vault: %w", err)
	}
	logger.Info("Connected to Vault",
		"address", apiCfg.Address,
		"version", health.Version,
		"sealed", health.Sealed)

	return &VaultClient{client: client, logger: logger}, nil
}

// resolveVaultToken prefers the inline token over the token file.
func resolveVaultToken(cfg VaultConfig, logger *errors.Logger) (string, error) {
	token := cfg.Token
	if token == "" && cfg.TokenFile != "" {
		logger.Debug("Reading Vault token from file", "file", cfg.TokenFile)
		data, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(data))
	}
	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// ReadKV reads the latest version of the KVv2 secret at path.
func (vc *VaultClient) ReadKV(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}
	return decodeKV(secret, path)
}

func decodeKV(secret *api.Secret, path string) (*VaultSecret, error) {
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}
	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}
	version, err := kvVersion(metadata["version"], path)
	if err != nil {
		return nil, err
	}
	return &VaultSecret{Data: data, Version: version}, nil
}

func kvVersion(raw any, path string) (int64, error) {
	switch v := raw.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return n, nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, raw)
	}
}

// String returns the non-empty string field key.
func (s *VaultSecret) String(key string) (string, bool) {
	v, ok := s.Data[key].(string)
	return v, ok && v != ""
}

// vaultBinding copies fields of one secret into the config.
type vaultBinding struct {
	name  string
	path  func(VaultSecrets) string
	apply func(cfg *Config, secret *VaultSecret) (int, error)
}

var vaultBindings = []vaultBinding{
	{
		name: "server API keys",
		path: func(s VaultSecrets) string { return s.APIKeys },
		apply: func(cfg *Config, secret *VaultSecret) (int, error) {
			raw, ok := secret.String("keys")
			if !ok {
				return 0, fmt.Errorf("field 'keys' is missing or empty")
			}
			var keys []string
			for _, k := range strings.Split(raw, ",") {
				if k = strings.TrimSpace(k); k != "" {
					keys = append(keys, k)
				}
			}
			cfg.Server.APIKeys = keys
			return len(keys), nil
		},
	},
	{
		name: "Gemini API key",
		path: func(s VaultSecrets) string { return s.GeminiKey },
		apply: func(cfg *Config, secret *VaultSecret) (int, error) {
			key, ok := secret.String("api_key")
			if !ok {
				return 0, fmt.Errorf("field 'api_key' is missing or empty")
			}
			applyGeminiKey(cfg, key)
			return 1, nil
		},
	},
	{
		name: "storage lock password",
		path: func(s VaultSecrets) string { return s.RedisPassword },
		apply: func(cfg *Config, secret *VaultSecret) (int, error) {
			password, ok := secret.String("password")
			if !ok {
				return 0, fmt.Errorf("field 'password' is missing or empty")
			}
			cfg.Storage.Lock.RedisPassword = password
			return 1, nil
		},
	},
	{
		name: "TLS certificate",
		path: func(s VaultSecrets) string { return s.TLSCerts },
		apply: func(cfg *Config, secret *VaultSecret) (int, error) {
			return applyTLSContent(cfg, secret), nil
		},
	},
}

// applyGeminiKey sets key globally and on every operation without a key of
// its own.
func applyGeminiKey(cfg *Config, key string) {
	cfg.AI.APIKey = key
	for _, op := range []*OperationAIConfig{&cfg.AI.Simulate, &cfg.AI.Analyze, &cfg.AI.Extract, &cfg.AI.Compare} {
		if op.APIKey == "" {
			op.APIKey = key
		}
	}
}

// applyTLSContent copies PEM content and clears the file paths it replaces.
func applyTLSContent(cfg *Config, secret *VaultSecret) int {
	n := 0
	if cert, ok := secret.String("cert"); ok {
		cfg.Server.TLS.CertContent = cert
		n++
	}
	if key, ok := secret.String("key"); ok {
		cfg.Server.TLS.KeyContent = key
		n++
	}
	if n > 0 {
		cfg.Server.TLS.CertFile = ""
		cfg.Server.TLS.KeyFile = ""
	}
	return n
}

// ApplyVaultSecrets overrides config values with the secrets configured
// under vault.secrets. Vault wins over files and the environment.
func ApplyVaultSecrets(cfg *Config, logger *errors.Logger) error {
	if logger == nil {
		logger = errors.Discard()
	}
	if !cfg.Vault.Enabled {
		logger.Debug("Vault integration disabled, skipping secret loading")
		return nil
	}

	client, err := NewVaultClient(cfg.Vault, logger)
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to initialize vault client", err)
	}

	for _, b := range vaultBindings {
		path := b.path(cfg.Vault.Secrets)
		if path == "" {
			continue
		}
		secret, err := client.ReadKV(path)
		if err != nil {
			return errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to load "+b.name+" from vault", err).
				WithContext("path", path)
		}
		n, err := b.apply(cfg, secret)
		if err != nil {
			return errors.NewConfigError(errors.ErrCodeInvalidConfig, "invalid "+b.name+" secret", err).
				WithContext("path", path)
		}
		logger.Info("Secret loaded from Vault", "secret", b.name, "path", path, "values", n, "version", secret.Version)
	}
	return nil
}
