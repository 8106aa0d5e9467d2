package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"oddsarb.dev/core/internal/venue"
)

// HTTPVerifier calls an external verification service over plain HTTP/JSON
// — the pluggable LLM-backed boundary spec.md §4.6/§9 describes. See
// DESIGN.md for why this replaces the teacher's grpc-based strategy
// verifier client.
type HTTPVerifier struct {
	Endpoint string
	Client   *http.Client
	Timeout  time.Duration
}

// NewHTTPVerifier builds a verifier posting to endpoint.
func NewHTTPVerifier(endpoint string) *HTTPVerifier {
	return &HTTPVerifier{Endpoint: endpoint, Client: http.DefaultClient, Timeout: 10 * time.Second}
}

type verifyRequest struct {
	PolyTitle       string `json:"poly_title"`
	PolyDescription string `json:"poly_description"`
	KalshiTitle     string `json:"kalshi_title"`
	KalshiDescription string `json:"kalshi_description"`
}

type verifyResponse struct {
	IsMatch       bool    `json:"isMatch"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
	PolyOutcome   string  `json:"polyOutcome"`
	KalshiOutcome string  `json:"kalshiOutcome"`
}

// Verify posts both markets' text to the external verifier and parses its
// structured response.
func (v *HTTPVerifier) Verify(poly, kalshi venue.Market) (VerifyResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), v.Timeout)
	defer cancel()

	payload, err := json.Marshal(verifyRequest{
		PolyTitle: poly.Title, PolyDescription: poly.Description,
		KalshiTitle: kalshi.Title, KalshiDescription: kalshi.Description,
	})
	if err != nil {
		return VerifyResult{}, fmt.Errorf("encode verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return VerifyResult{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.Client.Do(req)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("call verifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return VerifyResult{}, fmt.Errorf("verifier returned status %d", resp.StatusCode)
	}

	var vr verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return VerifyResult{}, fmt.Errorf("decode verify response: %w", err)
	}

	result := VerifyResult{
		IsMatch:    vr.IsMatch,
		Confidence: vr.Confidence,
		Reasoning:  vr.Reasoning,
	}
	if vr.PolyOutcome == "NO" {
		result.PolyOutcome = venue.OutcomeNo
	} else {
		result.PolyOutcome = venue.OutcomeYes
	}
	if vr.KalshiOutcome == "NO" {
		result.KalshiOutcome = venue.OutcomeNo
	} else {
		result.KalshiOutcome = venue.OutcomeYes
	}
	return result, nil
}
