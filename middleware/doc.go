// Package middleware provides switchboard middleware for audit logging,
// bearer token authentication and request body validation.
package middleware
