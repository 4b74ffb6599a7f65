package config

import (
	"os"
	"path/filepath"
	"strings"
)

// SecretSource resolves a secret value by key
type SecretSource interface {
	Get(key string) (string, bool)
}

// EnvSecretSource reads secrets from environment variables
type EnvSecretSource struct{}

func (EnvSecretSource) Get(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// FileSecretSource reads secrets from files in a directory, compatible with
// Docker secrets. A KEY_FILE environment variable overrides the file path
// for that key.
type FileSecretSource struct {
	baseDir string
}

func NewFileSecretSource(baseDir string) FileSecretSource {
	return FileSecretSource{baseDir: baseDir}
}

func (f FileSecretSource) Get(key string) (string, bool) {
	path := filepath.Join(f.baseDir, strings.ToLower(key))
	if override := os.Getenv(key + "_FILE"); override != "" {
		path = override
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// ChainSecretSource tries each source in order and returns the first hit
type ChainSecretSource struct {
	sources []SecretSource
}

func NewChainSecretSource(sources ...SecretSource) ChainSecretSource {
	return ChainSecretSource{sources: sources}
}

func (c ChainSecretSource) Get(key string) (string, bool) {
	for _, source := range c.sources {
		if value, ok := source.Get(key); ok {
			return value, true
		}
	}
	return "", false
}

// defaultSecretSource builds the deployment secret chain: Docker secrets
// first, then a SECRETS_PATH directory, then environment variables
func defaultSecretSource() SecretSource {
	var sources []SecretSource

	if info, err := os.Stat("/run/secrets"); err == nil && info.IsDir() {
		sources = append(sources, NewFileSecretSource("/run/secrets"))
	}
	if dir := os.Getenv("SECRETS_PATH"); dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			sources = append(sources, NewFileSecretSource(dir))
		}
	}
	sources = append(sources, EnvSecretSource{})

	return NewChainSecretSource(sources...)
}
