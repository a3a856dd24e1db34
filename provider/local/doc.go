// Package local provides an in-process identity provider for go-admin-auth.
//
// Accounts are loaded from YAML with bcrypt password hashes. Signing in mints
// an HS256 ID token carrying the account email, display name and optional
// role claim. The provider keeps one signed in identity per process and is
// meant for development consoles and tests.
package local
