// Package secret resolves credentials referenced from configuration so
// tokens and signing keys never have to live in the config file itself.
//
// It supports:
//   - Strict environment expansion (see ExpandEnvStrict)
//   - Secret references of the form "secretref:<provider>:<ref>",
//     resolved by pluggable providers (env, file)
//
// Examples:
//
//	token = "secretref:env:EDGE_TOKEN"
//	signing_secret = "secretref:file:/run/secrets/edge-signing-key"
package secret
