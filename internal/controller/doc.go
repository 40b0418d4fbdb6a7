// Package controller implements the network-controller REST client.
//
// It owns the HTTP session against the controller (cookie-based login,
// CSRF token handling, re-login on expiry) and the per-kind endpoint
// table used to fetch every rule collection in one pass.
//
// The client plays two collaborator roles for the coordinator:
//
//   - data fetch: FetchAll returns the raw per-kind collections
//   - auth state: AuthInProgress / IsAuthError / HandleAuthError let the
//     coordinator distinguish recoverable session expiry from hard
//     transport failures
//
// Re-login is single-flight: concurrent HandleAuthError calls collapse
// into one login request, and AuthInProgress reports true for its
// duration so the coordinator can skip fetching and serve cached data
// instead of surfacing a stale-auth condition.
package controller
