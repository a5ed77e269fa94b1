package config

import (
	"context"
	"os"
)

// SecretProvider resolves secret values by key. SSMProvider serves deployed
// environments; EnvVarProvider serves local runs.
type SecretProvider interface {
	// GetParametersBatch returns key -> plaintext for every key it could
	// resolve. Keys it cannot find are omitted from the map.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

// NewSecretProvider picks the provider for the environment named by appEnv.
func NewSecretProvider(appEnv, region, endpoint string) SecretProvider {
	if appEnv == localEnv {
		return NewEnvVarProvider()
	}
	return NewSSMProvider(region, endpoint)
}

// EnvVarProvider treats every parameter path as the name of an environment
// variable, so a local .env can stand in for Parameter Store.
type EnvVarProvider struct {
	lookup func(string) (string, bool)
}

func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{lookup: os.LookupEnv}
}

// GetParametersBatch leaves unset variables out. It fails only when ctx is
// already done.
func (p *EnvVarProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	lookup := p.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	found := make(map[string]string, len(keys))
	for _, key := range keys {
		if v, ok := lookup(key); ok {
			found[key] = v
		}
	}
	return found, ctx.Err()
}
