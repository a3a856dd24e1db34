// Package idtoolkit provides an identity provider for go-admin-auth backed by
// an Identity Toolkit style REST API.
//
// Sign in uses accounts:signInWithPassword, password resets use
// accounts:sendOobCode and tokens are renewed through the secure token
// endpoint. ID tokens are verified against the published JWKS with issuer
// and audience checks. The refresh token is kept in a TokenStore so a new
// process can restore the session without asking for credentials.
package idtoolkit
