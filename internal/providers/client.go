package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"notroom/pkg/types"
)

// Per-provider API roots. Overridable in tests via WithBaseURL.
var defaultBaseURLs = map[string]string{
	"intellicorp":          "https://api.intellicorp.com",
	"goodhire":             "https://api.goodhire.com",
	"checkr":               "https://api.checkr.com",
	"verified_credentials": "https://api.verifiedcredentials.com",
}

// InitiationRequest carries the applicant identity a provider needs to send
// its own invitation to the candidate.
type InitiationRequest struct {
	CandidateEmail string
	CandidateName  string
	CallbackURL    string
}

type InitiationResult struct {
	CheckID       string
	InvitationURL string
}

// Client starts background checks with the upstream provider APIs.
type Client struct {
	config     *types.Config
	httpClient *http.Client
	baseURLs   map[string]string
}

func NewClient(config *types.Config) *Client {
	urls := make(map[string]string, len(defaultBaseURLs))
	for k, v := range defaultBaseURLs {
		urls[k] = v
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURLs: urls,
	}
}

// WithBaseURL overrides a provider's API root, mainly for tests.
func (c *Client) WithBaseURL(providerID, baseURL string) *Client {
	c.baseURLs[providerID] = baseURL
	return c
}

// InitiateCheck orders a new check from the provider and returns the
// provider's check id plus the candidate invitation URL.
func (c *Client) InitiateCheck(ctx context.Context, providerID string, req InitiationRequest) (*InitiationResult, error) {
	if req.CandidateEmail == "" {
		return nil, fmt.Errorf("candidate email is required to initiate a check")
	}

	apiKey := c.config.ProviderAPIKey(providerID)
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %s", providerID)
	}

	switch providerID {
	case "intellicorp":
		return c.initiateIntellicorp(ctx, apiKey, req)
	case "goodhire":
		return c.initiateGoodhire(ctx, apiKey, req)
	case "checkr":
		return c.initiateCheckr(ctx, apiKey, req)
	case "verified_credentials":
		return c.initiateVerifiedCredentials(ctx, apiKey, req)
	}

	return nil, fmt.Errorf("provider %s does not support API initiation", providerID)
}

func (c *Client) initiateIntellicorp(ctx context.Context, apiKey string, req InitiationRequest) (*InitiationResult, error) {
	body := map[string]any{
		"package":        "notary_standard",
		"candidateEmail": req.CandidateEmail,
		"candidateName":  req.CandidateName,
		"callbackUrl":    req.CallbackURL,
	}

	var resp struct {
		OrderID   string `json:"orderId"`
		PortalURL string `json:"portalUrl"`
	}
	if err := c.do(ctx, c.baseURLs["intellicorp"]+"/v2/orders", apiKey, body, &resp); err != nil {
		return nil, fmt.Errorf("intellicorp order: %w", err)
	}

	return &InitiationResult{CheckID: resp.OrderID, InvitationURL: resp.PortalURL}, nil
}

func (c *Client) initiateGoodhire(ctx context.Context, apiKey string, req InitiationRequest) (*InitiationResult, error) {
	body := map[string]any{
		"package":      "standard",
		"email":        req.CandidateEmail,
		"full_name":    req.CandidateName,
		"callback_url": req.CallbackURL,
	}

	var resp struct {
		CheckID       string `json:"check_id"`
		InvitationURL string `json:"invitation_url"`
	}
	if err := c.do(ctx, c.baseURLs["goodhire"]+"/v1/checks", apiKey, body, &resp); err != nil {
		return nil, fmt.Errorf("goodhire check: %w", err)
	}

	return &InitiationResult{CheckID: resp.CheckID, InvitationURL: resp.InvitationURL}, nil
}

func (c *Client) initiateCheckr(ctx context.Context, apiKey string, req InitiationRequest) (*InitiationResult, error) {
	body := map[string]any{
		"package": "tasker_standard",
		"candidate": map[string]any{
			"email":     req.CandidateEmail,
			"full_name": req.CandidateName,
		},
	}

	var resp struct {
		ID            string `json:"id"`
		InvitationURL string `json:"invitation_url"`
	}
	if err := c.do(ctx, c.baseURLs["checkr"]+"/v1/invitations", apiKey, body, &resp); err != nil {
		return nil, fmt.Errorf("checkr invitation: %w", err)
	}

	return &InitiationResult{CheckID: resp.ID, InvitationURL: resp.InvitationURL}, nil
}

func (c *Client) initiateVerifiedCredentials(ctx context.Context, apiKey string, req InitiationRequest) (*InitiationResult, error) {
	body := map[string]any{
		"screeningPackage": "notary",
		"candidateEmail":   req.CandidateEmail,
		"candidateName":    req.CandidateName,
		"callbackUrl":      req.CallbackURL,
	}

	var resp struct {
		ScreeningID   string `json:"screeningId"`
		CandidateLink string `json:"candidateLink"`
	}
	if err := c.do(ctx, c.baseURLs["verified_credentials"]+"/api/screenings", apiKey, body, &resp); err != nil {
		return nil, fmt.Errorf("verified credentials screening: %w", err)
	}

	return &InitiationResult{CheckID: resp.ScreeningID, InvitationURL: resp.CandidateLink}, nil
}

func (c *Client) do(ctx context.Context, url, apiKey string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
