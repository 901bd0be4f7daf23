// Package state provides a per-user FSM for Telegram conversations.
// Sessions live in an injected Store; the Machine owns the lifecycle and
// runs the discard hook on every removal path, including TTL expiry.
package state
