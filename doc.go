// Package auth turns identity provider credentials into authorized admin
// sessions and gates the admin console behind them.
//
// Resolution:
//   - Resolver inspects the role claim of an identity assertion and falls back
//     to a point lookup in an AuthorizationRegistry. It returns a Resolution
//     with an explicit Outcome so callers handle authorized, not authorized
//     and registry unavailable branches separately. It never fails open.
//   - Claims are read without forcing a token refresh. Forcing a refresh makes
//     the provider publish a token change, which a watching Store would answer
//     with another resolution. Claims may therefore lag a very recent role grant
//     until the provider rotates the token on its own.
//
// Session store:
//   - Store owns the Loading, Unauthenticated and Authenticated states for the
//     process. It is the only writer of the current AuthSession; readers use
//     State or Subscribe. Login compensates authorization failures by signing
//     the provider back out.
//
// Route guard:
//   - Guard is a pure decision over store state and the requested location.
//     ProtectedRoute applies it to fiber handlers and redirects to the login
//     entry point with a `next` return target.
package auth
