// Package state keeps short-lived per-user conversation sessions in memory.
// Sessions carry a step marker plus arbitrary data, expire after a TTL and
// serialize concurrent updates for the same user.
package state
