// Package tenant owns the gateway's view of provisioned Redis instances:
// the routing table mapping instance IDs to backends, API-key authorization
// against that table, and the sources that refresh it from the control plane.
package tenant

import (
	"crypto/sha256"
	"encoding/hex"
)

// Instance status constants, matching the control plane's lifecycle states.
const (
	StatusRunning = "running"
	StatusPending = "pending"
	StatusStopped = "stopped"
	StatusError   = "error"
)

// Record is one provisioned Redis instance reachable through the gateway.
// It is a cache of control-plane truth; the gateway never persists it.
type Record struct {
	InstanceID         string `yaml:"instance_id"`
	BackendAddr        string `yaml:"backend_addr"`
	APIKeyHash         string `yaml:"api_key_hash"`
	MaxMemoryMB        int64  `yaml:"max_memory_mb"`
	PersistenceEnabled bool   `yaml:"persistence_enabled"`
	Status             string `yaml:"status"`
}

// Running reports whether commands may be dispatched to this instance.
func (r Record) Running() bool {
	return r.Status == StatusRunning
}

// HashAPIKey computes the SHA-256 hex digest under which API keys are
// stored and compared. Raw keys are never kept.
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
