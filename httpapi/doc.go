// Package httpapi serves the account engine over HTTP with chi.
//
// Every route lives under /auth. Request bodies are JSON and validated with
// struct tags; failures render as {"error": message} with the status of the
// engine error kind. Tokens travel in the accessToken and refreshToken
// cookies, and the access token is also returned in the body.
package httpapi
