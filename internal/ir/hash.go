package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefix for plan identity. The version suffix allows the hashing
// scheme to change without colliding with older ids.
const DomainPlan = "sparkplan/relation/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PlanID computes the content-addressed id of a plan. Two plans have the
// same id exactly when they encode to the same bytes, unknown fields
// included. Returns an error if the plan is invalid.
func PlanID(r *Relation) (string, error) {
	data, err := Marshal(r)
	if err != nil {
		return "", fmt.Errorf("PlanID: %w", err)
	}
	return PlanIDFromBytes(data), nil
}

// PlanIDFromBytes computes the plan id of an already encoded plan.
func PlanIDFromBytes(data []byte) string {
	return hashWithDomain(DomainPlan, data)
}

// MustPlanID is like PlanID but panics on error.
// Use only in tests or when the plan is known to be valid.
func MustPlanID(r *Relation) string {
	id, err := PlanID(r)
	if err != nil {
		panic(err)
	}
	return id
}
