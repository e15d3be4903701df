package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/samber/lo"
)

type Scope string

const (
	// ScopeLifecycleEvent keys outbound lifecycle notifications so redelivered
	// messages keep the id consumers deduplicate on
	ScopeLifecycleEvent Scope = "lifecycle_event"

	// ScopeRetryCharge keys out of band charges sent to a gateway
	ScopeRetryCharge Scope = "retry_charge"
)

// Generator derives stable keys from a scope and a parameter set. Parameter
// order does not matter.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) GenerateKey(scope Scope, params map[string]interface{}) string {
	keys := lo.Keys(params)
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(scope))
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%v", k, params[k])
	}
	return string(scope) + "-" + hex.EncodeToString(h.Sum(nil)[:8])
}

// ValidateKey reports whether key was generated from scope and params
func (g *Generator) ValidateKey(scope Scope, params map[string]interface{}, key string) bool {
	return g.GenerateKey(scope, params) == key
}
