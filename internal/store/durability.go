package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Durability is how many copies must acknowledge a write before it counts.
// The numeric values are the configuration indexes and must stay stable.
type Durability int

const (
	DurabilityNone Durability = iota
	DurabilityMajority
	DurabilityMajorityAndPersistToActive
	DurabilityPersistToMajority
)

var durabilityNames = [...]string{
	DurabilityNone:                       "none",
	DurabilityMajority:                   "majority",
	DurabilityMajorityAndPersistToActive: "majority_and_persist_to_active",
	DurabilityPersistToMajority:          "persist_to_majority",
}

func (d Durability) Valid() bool {
	return d >= DurabilityNone && d <= DurabilityPersistToMajority
}

func (d Durability) String() string {
	if !d.Valid() {
		return fmt.Sprintf("durability(%d)", int(d))
	}
	return durabilityNames[d]
}

// DurabilityFromIndex maps a configured index onto a level.
func DurabilityFromIndex(i int) (Durability, error) {
	d := Durability(i)
	if !d.Valid() {
		return 0, fmt.Errorf("%w: index %d out of range 0..%d", ErrInvalidDurability, i, len(durabilityNames)-1)
	}
	return d, nil
}

// ParseDurability accepts either a level name or its index.
func ParseDurability(s string) (Durability, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(v); err == nil {
		return DurabilityFromIndex(n)
	}
	for i, name := range durabilityNames {
		if name == v {
			return Durability(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDurability, s)
}

// majorityReplicas is the number of replicas that, together with the active
// node, form a majority of a cluster with the given replica count.
func majorityReplicas(replicas int) int {
	if replicas <= 0 {
		return 0
	}
	return (replicas + 1) / 2
}
