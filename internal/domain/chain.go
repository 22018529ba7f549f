package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Transplant is one realized donor→recipient step of a chain. The JSON names are the ones the
// coordination front-end has always consumed.
type Transplant struct {
	Recipient          string  `json:"receptor"`
	Donor              string  `json:"donant"`
	SuccessProbability float64 `json:"probExit"`
	Value              float64 `json:"valor"`
}

// Chain is an ordered sequence of transplants; position 0 is the altruist's donation.
type Chain []Transplant

// Donors returns the donors of the chain in order.
func (c Chain) Donors() []string {
	donors := make([]string, len(c))
	for i, t := range c {
		donors[i] = t.Donor
	}
	return donors
}

// Recipients returns the recipients of the chain in order.
func (c Chain) Recipients() []string {
	recipients := make([]string, len(c))
	for i, t := range c {
		recipients[i] = t.Recipient
	}
	return recipients
}

// CrossedTestHit records a candidate step rejected by a positive crossed test.
type CrossedTestHit struct {
	Donor    string `json:"donor"`
	Receiver string `json:"receiver"`
}

// BuildLog is the diagnostic trail of a chain build.
type BuildLog struct {
	Candidates   Chain            `json:"candidates"`
	CrossedTests []CrossedTestHit `json:"crossed_tests"`
	Errors       []string         `json:"errors"`
}

// BuildOptions are the optional arguments of a chain build.
type BuildOptions struct {
	IgnoredDonors            []string `json:"ignored_donors,omitempty"`
	IgnoredRecipients        []string `json:"ignored_recipients,omitempty"`
	CrossedTests             []string `json:"crossed_tests,omitempty"`
	IgnoreFailureProbability bool     `json:"ignore_failure_probability,omitempty"`
	ChainLength              int      `json:"chain_length,omitempty"`
}

// CrossedTestKey formats a crossed test result the way laboratories report it: "recipient-donor".
func CrossedTestKey(recipient, donor string) string {
	return recipient + "-" + donor
}

// ValidCrossedTestKey reports whether key has the "recipient-donor" shape. Keys are matched
// verbatim, so any other string simply never matches a transplant.
func ValidCrossedTestKey(key string) bool {
	recipient, donor, found := strings.Cut(key, "-")
	return found && recipient != "" && donor != ""
}

// Hash returns a stable content hash of the graph: hex SHA-256 of its JSON encoding.
// encoding/json writes map keys sorted, so equal content always hashes equally.
func (g *CompatibilityGraph) Hash() (string, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("failed to encode graph: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
