package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/oauthmodel"
	"github.com/rs/zerolog/log"
)

var _ Issuer = (*HTTPIssuer)(nil)

const (
	DefaultIssuerTimeout = 10 * time.Second
	tokensPath           = "/v3/tokens"
	maxResponseBytes     = 1 << 20
)

// HTTPIssuer delegates token minting to the external tokens service.
type HTTPIssuer struct {
	baseURL      string
	serviceToken string
	client       *http.Client
}

// HTTPIssuerOption configures an HTTPIssuer.
type HTTPIssuerOption func(*HTTPIssuer)

// WithHTTPClient replaces the default client. Its timeout bounds each call.
func WithHTTPClient(client *http.Client) HTTPIssuerOption {
	return func(h *HTTPIssuer) {
		h.client = client
	}
}

// WithServiceToken sets the token the server presents to the tokens service.
func WithServiceToken(token string) HTTPIssuerOption {
	return func(h *HTTPIssuer) {
		h.serviceToken = token
	}
}

func NewHTTPIssuer(baseURL string, options ...HTTPIssuerOption) (*HTTPIssuer, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("[NewHTTPIssuer] tokens service url is required")
	}
	h := &HTTPIssuer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultIssuerTimeout},
	}
	for _, opt := range options {
		opt(h)
	}
	return h, nil
}

type createTokenRequest struct {
	TokenTenantID  string            `json:"token_tenant_id"`
	AccountType    string            `json:"account_type"`
	TokenUsername  string            `json:"token_username"`
	AccessTokenTTL int64             `json:"access_token_ttl,omitempty"`
	Claims         map[string]string `json:"claims,omitempty"`
}

// Issue posts the grant to the tokens service and returns its result.
// Any transport failure, timeout or non-2xx status is ServiceUnavailable.
func (h *HTTPIssuer) Issue(ctx context.Context, grant Grant) (oauthmodel.TokenResponse, error) {
	body := createTokenRequest{
		TokenTenantID:  grant.TenantID,
		AccountType:    grant.AccountType,
		TokenUsername:  grant.Username,
		AccessTokenTTL: int64(grant.AccessTokenTTL / time.Second),
	}
	if grant.ClientID != "" {
		body.Claims = map[string]string{"tapis/client_id": grant.ClientID}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("[HTTPIssuer.Issue] %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+tokensPath, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("[HTTPIssuer.Issue] %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if h.serviceToken != "" {
		req.Header.Set("X-Tapis-Token", h.serviceToken)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", grant.TenantID).Msg("tokens service unreachable")
		return nil, errors.WithCause(errors.ErrServiceUnavailable, "token service unavailable", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.WithCause(errors.ErrServiceUnavailable, "token service unavailable", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error().Int("status", resp.StatusCode).Str("tenant_id", grant.TenantID).Msg("tokens service rejected request")
		return nil, errors.Newf(errors.ErrServiceUnavailable, "token service returned status %d", resp.StatusCode)
	}

	var envelope map[string]any
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, errors.WithCause(errors.ErrServiceUnavailable, "token service returned a malformed response", err)
	}
	// The tokens service wraps its payload in the standard envelope.
	if result, ok := envelope["result"].(map[string]any); ok {
		return oauthmodel.TokenResponse(result), nil
	}
	return oauthmodel.TokenResponse(envelope), nil
}
