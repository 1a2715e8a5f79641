// Package command translates inbound HTTP requests into Redis command
// vectors and enforces the verb policy that keeps tenants inside their own
// blast radius.
package command

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Arity bounds the argument count for a verb (arguments exclude the verb
// itself). Max -1 means unbounded.
type Arity struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

func exactly(n int) Arity { return Arity{Min: n, Max: n} }
func atLeast(n int) Arity { return Arity{Min: n, Max: -1} }

// Policy is the explicit allow-list of dispatchable verbs with their arity
// rules, plus the administrative deny-list. Verbs absent from the allow-list
// are forbidden regardless of the deny-list; the deny-list exists so that an
// operator override of the allow-list still cannot re-enable them.
type Policy struct {
	allowed map[string]Arity
	denied  map[string]struct{}
}

// deniedVerbs are never dispatchable: cross-tenant or admin commands, plus
// transaction, scripting and subscription machinery the gateway does not
// support.
var deniedVerbs = []string{
	"FLUSHALL", "FLUSHDB", "CONFIG", "SHUTDOWN", "CLUSTER", "SCRIPT",
	"DEBUG", "SLAVEOF", "REPLICAOF", "ACL", "MONITOR", "MIGRATE", "KEYS",
	"SUBSCRIBE", "PSUBSCRIBE", "UNSUBSCRIBE", "PUNSUBSCRIBE", "PUBLISH",
	"MULTI", "EXEC", "DISCARD", "WATCH", "UNWATCH", "EVAL", "EVALSHA",
	"SAVE", "BGSAVE", "BGREWRITEAOF", "RESET", "SELECT", "SWAPDB",
}

// DefaultPolicy returns the built-in data-command allow-list.
func DefaultPolicy() *Policy {
	p := &Policy{
		allowed: map[string]Arity{
			"PING": {Min: 0, Max: 1},
			"ECHO": exactly(1),
			"TYPE": exactly(1),

			// Strings
			"GET":    exactly(1),
			"GETDEL": exactly(1),
			"SET":    atLeast(2),
			"SETNX":  exactly(2),
			"APPEND": exactly(2),
			"STRLEN": exactly(1),
			"MGET":   atLeast(1),
			"MSET":   atLeast(2),
			"INCR":   exactly(1),
			"DECR":   exactly(1),
			"INCRBY": exactly(2),
			"DECRBY": exactly(2),

			// Generic keys
			"DEL":     exactly(1),
			"EXISTS":  atLeast(1),
			"TTL":     exactly(1),
			"PTTL":    exactly(1),
			"EXPIRE":  exactly(2),
			"PERSIST": exactly(1),

			// Hashes
			"HSET":    exactly(3),
			"HGET":    exactly(2),
			"HDEL":    atLeast(2),
			"HGETALL": exactly(1),
			"HKEYS":   exactly(1),
			"HVALS":   exactly(1),
			"HLEN":    exactly(1),
			"HEXISTS": exactly(2),

			// Lists
			"LPUSH":  atLeast(2),
			"RPUSH":  atLeast(2),
			"LPOP":   exactly(1),
			"RPOP":   exactly(1),
			"LLEN":   exactly(1),
			"LRANGE": exactly(3),
			"LINDEX": exactly(2),

			// Sets
			"SADD":      atLeast(2),
			"SREM":      atLeast(2),
			"SMEMBERS":  exactly(1),
			"SISMEMBER": exactly(2),
			"SCARD":     exactly(1),

			// Sorted sets
			"ZADD":   atLeast(3),
			"ZREM":   atLeast(2),
			"ZSCORE": exactly(2),
			"ZCARD":  exactly(1),
			"ZRANGE": atLeast(3),
		},
		denied: map[string]struct{}{},
	}
	for _, v := range deniedVerbs {
		p.denied[v] = struct{}{}
	}
	return p
}

// policyFile is the operator-facing YAML shape. Allow entries replace or add
// verbs; deny entries extend the built-in deny-list.
type policyFile struct {
	Allow map[string]Arity `yaml:"allow"`
	Deny  []string         `yaml:"deny"`
}

// LoadPolicy reads a YAML policy file and applies it on top of the default
// policy. Deny always wins over allow.
func LoadPolicy(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var f policyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	p := DefaultPolicy()
	for verb, arity := range f.Allow {
		if arity.Min < 0 || (arity.Max != -1 && arity.Max < arity.Min) {
			return nil, fmt.Errorf("policy file %s: verb %s has invalid arity", path, verb)
		}
		p.allowed[strings.ToUpper(verb)] = arity
	}
	for _, verb := range f.Deny {
		p.denied[strings.ToUpper(verb)] = struct{}{}
	}
	for verb := range p.denied {
		delete(p.allowed, verb)
	}
	return p, nil
}

// Check validates a verb and its argument count against the policy.
func (p *Policy) Check(verb string, argc int) error {
	if _, denied := p.denied[verb]; denied {
		return &ForbiddenError{Verb: verb}
	}
	arity, ok := p.allowed[verb]
	if !ok {
		return &ForbiddenError{Verb: verb}
	}
	if argc < arity.Min || (arity.Max != -1 && argc > arity.Max) {
		return &InvalidError{Reason: fmt.Sprintf("wrong number of arguments for %s", verb)}
	}
	return nil
}
