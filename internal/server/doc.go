// Package server provides the HTTP pieces of the OAuth2 authorization code flow used by `isrcx auth`.
//
// [BasicRouter] wraps [http.ServeMux] with method filtering and a [Middleware]
// stack; [RequestLogger] logs requests without their query strings.
//
// [OAuthHandler] serves the redirect URI. It validates the state parameter,
// exchanges the code for tokens and publishes a single [OAuthResult]. Replayed
// callbacks are rejected.
//
// [AwaitToken] runs a temporary server on the loopback listener until the
// callback arrives, the context is cancelled or the timeout elapses.
package server
