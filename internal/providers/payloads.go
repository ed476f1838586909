package providers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// normalizeEvent finalizes a parsed payload. The adjudication, when present,
// is the authoritative outcome and wins over the reported status. Terminal
// events without a provider timestamp get CompletedAt stamped to now.
func normalizeEvent(provider, checkID, rawStatus, adjudication, reportURL string, completedAt *time.Time) (*NormalizedEvent, error) {
	if checkID == "" {
		return nil, fmt.Errorf("%s webhook payload missing check id", provider)
	}

	status := mapProviderStatus(strings.ToLower(strings.TrimSpace(rawStatus)))
	if adjudication != "" {
		status = mapProviderStatus(strings.ToLower(strings.TrimSpace(adjudication)))
	}

	ev := &NormalizedEvent{
		Provider:     provider,
		CheckID:      checkID,
		Status:       status,
		Adjudication: strings.ToLower(strings.TrimSpace(adjudication)),
		ReportURL:    reportURL,
		CompletedAt:  completedAt,
	}

	if ev.CompletedAt == nil && terminalStatus(status) {
		now := time.Now().UTC()
		ev.CompletedAt = &now
	}

	return ev, nil
}

type intellicorpAdapter struct{}

func (intellicorpAdapter) ID() string              { return "intellicorp" }
func (intellicorpAdapter) SignatureHeader() string { return "x-intellicorp-signature" }

func (intellicorpAdapter) VerifySignature(raw []byte, signature, secret string) bool {
	return verifyHMAC(raw, signature, secret)
}

func (a intellicorpAdapter) ParsePayload(raw []byte) (*NormalizedEvent, error) {
	var p struct {
		OrderID      string     `json:"orderId"`
		Status       string     `json:"status"`
		Adjudication string     `json:"adjudication"`
		ReportURL    string     `json:"reportUrl"`
		CompletedAt  *time.Time `json:"completedAt"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse intellicorp payload: %w", err)
	}

	return normalizeEvent(a.ID(), p.OrderID, p.Status, p.Adjudication, p.ReportURL, p.CompletedAt)
}

type goodhireAdapter struct{}

func (goodhireAdapter) ID() string              { return "goodhire" }
func (goodhireAdapter) SignatureHeader() string { return "x-goodhire-signature" }

func (goodhireAdapter) VerifySignature(raw []byte, signature, secret string) bool {
	return verifyHMAC(raw, signature, secret)
}

func (a goodhireAdapter) ParsePayload(raw []byte) (*NormalizedEvent, error) {
	var p struct {
		CheckID     string     `json:"check_id"`
		State       string     `json:"state"`
		Result      string     `json:"result"`
		ReportURL   string     `json:"report_url"`
		CompletedAt *time.Time `json:"completed_at"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse goodhire payload: %w", err)
	}

	return normalizeEvent(a.ID(), p.CheckID, p.State, p.Result, p.ReportURL, p.CompletedAt)
}

// checkrAdapter handles Checkr's event-envelope shape. Unlike the other
// providers there is no top-level status field: the event type carries the
// lifecycle, the report adjudication carries the outcome.
type checkrAdapter struct{}

func (checkrAdapter) ID() string              { return "checkr" }
func (checkrAdapter) SignatureHeader() string { return "x-checkr-signature" }

func (checkrAdapter) VerifySignature(raw []byte, signature, secret string) bool {
	return verifyHMAC(raw, signature, secret)
}

func (a checkrAdapter) ParsePayload(raw []byte) (*NormalizedEvent, error) {
	var p struct {
		Type string `json:"type"`
		Data struct {
			ID           string `json:"id"`
			Adjudication string `json:"adjudication"`
			ReportURL    string `json:"report_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse checkr payload: %w", err)
	}

	status := "pending"
	switch p.Type {
	case "report.completed":
		status = "complete"
	case "report.disputed", "report.canceled":
		status = "error"
	}

	return normalizeEvent(a.ID(), p.Data.ID, status, p.Data.Adjudication, p.Data.ReportURL, nil)
}

type verifiedCredentialsAdapter struct{}

func (verifiedCredentialsAdapter) ID() string              { return "verified_credentials" }
func (verifiedCredentialsAdapter) SignatureHeader() string { return "x-vc-signature" }

func (verifiedCredentialsAdapter) VerifySignature(raw []byte, signature, secret string) bool {
	return verifyHMAC(raw, signature, secret)
}

func (a verifiedCredentialsAdapter) ParsePayload(raw []byte) (*NormalizedEvent, error) {
	var p struct {
		ScreeningID     string     `json:"screeningId"`
		ScreeningStatus string     `json:"screeningStatus"`
		Outcome         string     `json:"outcome"`
		ReportLink      string     `json:"reportLink"`
		CompletedAt     *time.Time `json:"completedAt"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse verified credentials payload: %w", err)
	}

	return normalizeEvent(a.ID(), p.ScreeningID, p.ScreeningStatus, p.Outcome, p.ReportLink, p.CompletedAt)
}
