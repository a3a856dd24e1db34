// Package registry provides authorization registries for go-admin-auth.
//
// A registry maps a provider uid to an admin role. Memory is seeded from YAML
// and suits development and tests; SQL stores entries in an admin_registry
// table through bun. The resolver only ever calls GetRecord. Grant, Revoke
// and List exist for operator tooling.
package registry
