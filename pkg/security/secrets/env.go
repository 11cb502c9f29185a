package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix namespaces secrets read from the environment.
const DefaultEnvPrefix = "KEYRELAY_SECRET_"

// EnvProvider loads secrets from environment variables.
//
// The secret "work-key" is read from KEYRELAY_SECRET_WORK_KEY with the
// default prefix: the name is upper-cased and hyphens become underscores.
type EnvProvider struct {
	Prefix string

	lookup  func(string) (string, bool)
	environ func() []string
}

// NewEnvProvider creates an environment provider. An empty prefix reads
// variables by their bare converted name.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{
		Prefix:  prefix,
		lookup:  os.LookupEnv,
		environ: os.Environ,
	}
}

// Get returns the variable's value. Unset and empty variables are both
// reported as ErrNotFound.
func (p *EnvProvider) Get(_ context.Context, name string) (string, error) {
	envVar := p.envVar(name)
	value, ok := p.lookup(envVar)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s (env var %s)", ErrNotFound, name, envVar)
	}
	return value, nil
}

// List returns the names of every variable carrying the prefix.
func (p *EnvProvider) List(context.Context) ([]string, error) {
	var names []string
	for _, kv := range p.environ() {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, p.Prefix) || key == p.Prefix {
			continue
		}
		names = append(names, p.secretName(key))
	}
	return names, nil
}

// Name returns "env".
func (p *EnvProvider) Name() string { return "env" }

// Supports always reports true so the environment works as a fallback.
func (p *EnvProvider) Supports(string) bool { return true }

func (p *EnvProvider) envVar(name string) string {
	return p.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func (p *EnvProvider) secretName(envVar string) string {
	name := strings.TrimPrefix(envVar, p.Prefix)
	return strings.ToLower(strings.ReplaceAll(name, "_", "-"))
}
