// Package report signs, persists and renders scan results.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"secscan/internal/model"
)

const signaturePrefix = "sha256:"

var (
	ErrUnsigned          = errors.New("report is not signed")
	ErrSignatureMismatch = errors.New("report signature does not match its content")
)

// Canonical is the byte form the signature covers: compact JSON of the
// result with Signature cleared and every timestamp in UTC. Field order
// follows the struct definition, so the encoding is stable across runs.
func Canonical(res model.ScanResult) ([]byte, error) {
	res.Signature = ""
	res.Timestamp = res.Timestamp.UTC()
	findings := make([]model.Finding, len(res.Findings))
	for i, f := range res.Findings {
		f.Timestamp = f.Timestamp.UTC()
		findings[i] = f
	}
	res.Findings = findings
	b, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("canonicalize scan result: %w", err)
	}
	return b, nil
}

// Digest returns the "sha256:<hex>" signature for res.
func Digest(res model.ScanResult) (string, error) {
	b, err := Canonical(res)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return signaturePrefix + hex.EncodeToString(sum[:]), nil
}

// Sign returns a copy of res carrying its signature.
func Sign(res model.ScanResult) (model.ScanResult, error) {
	sig, err := Digest(res)
	if err != nil {
		return model.ScanResult{}, err
	}
	res.Signature = sig
	return res, nil
}

// Verify recomputes the signature of res and compares it to the stored one.
func Verify(res model.ScanResult) error {
	if strings.TrimSpace(res.Signature) == "" {
		return ErrUnsigned
	}
	want, err := Digest(res)
	if err != nil {
		return err
	}
	if want != res.Signature {
		return ErrSignatureMismatch
	}
	return nil
}
