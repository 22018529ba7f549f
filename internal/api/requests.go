package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kidney-chain-server/internal/domain"
)

// flexID accepts identifiers written either as JSON strings or as bare numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be a string or a number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// chainRequestBody is the body of a chain build. Each field is accepted under its English name
// and under the name used by the coordinators' web client; the English name wins when both are
// present.
type chainRequestBody struct {
	ID flexID `json:"id"`

	Depth       *int `json:"depth"`
	Profunditat *int `json:"profunditat"`

	Altruist flexID `json:"altruist"`
	Pacient  flexID `json:"pacient"`

	IgnoredDonors   []flexID `json:"ignored_donors"`
	DonantsIgnorats []flexID `json:"donantsIgnorats"`

	IgnoredRecipients []flexID `json:"ignored_recipients"`
	ReceptorsIgnorats []flexID `json:"receptorsIgnorats"`

	CrossedTests     []string `json:"crossed_tests"`
	ProvesEncreuades []string `json:"provesEncreuades"`

	IgnoreFailureProbability *bool `json:"ignore_failure_probability"`
	IgnorarFallada           *bool `json:"ignorarFallada"`

	ChainLength    *int `json:"chain_length"`
	LongitudCadena *int `json:"longitudCadena"`
}

func (b *chainRequestBody) toRequest() domain.ChainRequest {
	req := domain.ChainRequest{
		GraphID:  string(b.ID),
		Depth:    firstSet(b.Depth, b.Profunditat),
		Altruist: string(b.Altruist),
		Options: domain.BuildOptions{
			IgnoredDonors:     idStrings(b.IgnoredDonors, b.DonantsIgnorats),
			IgnoredRecipients: idStrings(b.IgnoredRecipients, b.ReceptorsIgnorats),
			CrossedTests:      b.CrossedTests,
		},
	}
	if req.Altruist == "" {
		req.Altruist = string(b.Pacient)
	}
	if req.Options.CrossedTests == nil {
		req.Options.CrossedTests = b.ProvesEncreuades
	}
	if v := firstSet(b.IgnoreFailureProbability, b.IgnorarFallada); v != nil {
		req.Options.IgnoreFailureProbability = *v
	}
	if v := firstSet(b.ChainLength, b.LongitudCadena); v != nil {
		req.Options.ChainLength = *v
	}
	return req
}

func firstSet[T any](values ...*T) *T {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func idStrings(primary, alias []flexID) []string {
	ids := primary
	if ids == nil {
		ids = alias
	}
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
