/*
Package secrets loads secret values from the environment and from a
directory of secret files, and substitutes them for ${secret:name}
references.

keyrelay resolves references in two places: the management API token
(management.token) when the configuration loads, and API keys given to
`keyrelay accounts add`. Keys are stored resolved, so the relay never
performs a lookup on the request path.

# Providers

Providers are consulted in order; the first one that yields a value wins.

	mgr := secrets.NewManager([]secrets.Provider{
		secrets.NewEnvProvider(secrets.DefaultEnvPrefix),
		fileProvider,
	}, secrets.DefaultCacheConfig())

	token, err := mgr.Resolve(ctx, "${secret:mgmt-token}")

EnvProvider maps "mgmt-token" to KEYRELAY_SECRET_MGMT_TOKEN. FileProvider
reads <dir>/mgmt-token and rejects files readable by group or others.
*/
package secrets
