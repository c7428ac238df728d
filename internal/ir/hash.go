package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEvent = "weave/event/v1"
	DomainTree  = "weave/tree/v1"
	DomainApp   = "weave/app/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed ID for an interface event.
// The ID is stable across replays given the same session, seq, target, and value.
func EventID(session string, seq int64, target string, value IRValue) (string, error) {
	obj := IRObject{
		"session": IRString(session),
		"seq":     IRInt(seq),
		"target":  IRString(target),
		"value":   nullIfNil(value),
	}

	canonical, err := marshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// TreeHash computes the content hash of an element tree.
// Two sessions of the same app produce the same tree hash.
func TreeHash(root *Element) (string, error) {
	canonical, err := marshalCanonical(root.toIR())
	if err != nil {
		return "", fmt.Errorf("TreeHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTree, canonical), nil
}

// AppHash computes the content hash of a compiled application definition.
func AppHash(spec AppSpec) (string, error) {
	canonical, err := marshalCanonical(spec.toIR())
	if err != nil {
		return "", fmt.Errorf("AppHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainApp, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(session string, seq int64, target string, value IRValue) string {
	id, err := EventID(session, seq, target, value)
	if err != nil {
		panic(err)
	}
	return id
}

func nullIfNil(v IRValue) IRValue {
	if v == nil {
		return IRNull{}
	}
	return v
}
