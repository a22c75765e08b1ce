package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AnTengye/quotepo/config"
	"github.com/AnTengye/quotepo/model"
	"github.com/AnTengye/quotepo/pkg/logger"
	"github.com/AnTengye/quotepo/pkg/metrics"
)

const (
	connectionsPath    = "/connections"
	contactsPath       = "/api.xro/2.0/Contacts"
	purchaseOrdersPath = "/api.xro/2.0/PurchaseOrders"
)

// Credentials identify the caller to the Xero accounting API
type Credentials struct {
	AccessToken string
	TenantID    string
}

// Connection is one tenant bound to an access token
type Connection struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	TenantType string `json:"tenantType"`
	TenantName string `json:"tenantName"`
}

// ContactsResponse is the envelope returned by the Contacts endpoint
type ContactsResponse struct {
	Contacts []model.Contact `json:"Contacts"`
}

// ContactRequest creates a contact by name
type ContactRequest struct {
	Name string `json:"Name"`
}

type XeroService struct {
	config     *config.XeroConfig
	httpClient *http.Client
	metrics    *metrics.Metrics
}

func NewXeroService(cfg *config.XeroConfig) *XeroService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &XeroService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics.Default(),
	}
}

// HTTPClient returns the client used for outbound calls
func (s *XeroService) HTTPClient() *http.Client {
	return s.httpClient
}

// FirstTenant lists the connections bound to accessToken and returns the first
func (s *XeroService) FirstTenant(ctx context.Context, accessToken string) (*Connection, error) {
	status, body, err := s.do(ctx, http.MethodGet, "connections.get", connectionsPath, nil, Credentials{AccessToken: accessToken}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTenantDiscovery, err)
	}
	if !success(status) {
		return nil, &RemoteRequestError{Kind: ErrTenantDiscovery, Op: "GET connections", StatusCode: status, Body: string(body)}
	}

	var connections []Connection
	if err := json.Unmarshal(body, &connections); err != nil {
		return nil, fmt.Errorf("%w: failed to parse connections: %v", ErrTenantDiscovery, err)
	}
	if len(connections) == 0 || connections[0].TenantID == "" {
		return nil, ErrTenantDiscovery
	}

	return &connections[0], nil
}

// ResolveContact returns the id of the first contact named name, creating
// the contact when none exists
func (s *XeroService) ResolveContact(ctx context.Context, creds Credentials, name string) (string, error) {
	query := url.Values{}
	query.Set("where", fmt.Sprintf(`Name=="%s"`, escapeWhere(name)))

	status, body, err := s.do(ctx, http.MethodGet, "contacts.get", contactsPath, query, creds, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrContactResolution, err)
	}
	if !success(status) {
		return "", &RemoteRequestError{Kind: ErrContactResolution, Op: "GET contacts", StatusCode: status, Body: string(body)}
	}

	var found ContactsResponse
	if err := json.Unmarshal(body, &found); err != nil {
		return "", fmt.Errorf("%w: failed to parse contacts: %v", ErrContactResolution, err)
	}
	if len(found.Contacts) > 0 {
		logger.Debug(ctx, "contact found", "name", name, "contact_id", found.Contacts[0].ContactID, "matches", len(found.Contacts))
		return found.Contacts[0].ContactID, nil
	}

	status, body, err = s.do(ctx, http.MethodPost, "contacts.post", contactsPath, nil, creds, ContactRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrContactResolution, err)
	}
	if !success(status) {
		return "", &RemoteRequestError{Kind: ErrContactResolution, Op: "POST contacts", StatusCode: status, Body: string(body)}
	}

	var created ContactsResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("%w: failed to parse created contact: %v", ErrContactResolution, err)
	}
	if len(created.Contacts) == 0 {
		return "", fmt.Errorf("%w: create response contained no contacts", ErrContactResolution)
	}

	logger.Info(ctx, "contact created", "name", name, "contact_id", created.Contacts[0].ContactID)
	return created.Contacts[0].ContactID, nil
}

// SubmitPurchaseOrder posts po and returns the raw response body
func (s *XeroService) SubmitPurchaseOrder(ctx context.Context, creds Credentials, po *model.PurchaseOrder) (string, error) {
	if po == nil {
		return "", ErrNoPendingOrder
	}

	status, body, err := s.do(ctx, http.MethodPost, "purchase_orders.post", purchaseOrdersPath, nil, creds, po)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	if !success(status) {
		return "", &RemoteRequestError{Kind: ErrSubmission, Op: "POST purchase orders", StatusCode: status, Body: string(body)}
	}

	return string(body), nil
}

func (s *XeroService) do(ctx context.Context, method, op, path string, query url.Values, creds Credentials, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	endpoint := s.config.APIURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Accept", "application/json")
	if creds.TenantID != "" {
		req.Header.Set("Xero-tenant-id", creds.TenantID)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.metrics.ObserveAPICall(op, 0)
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	s.metrics.ObserveAPICall(op, resp.StatusCode)
	logger.Debug(ctx, "xero api call",
		"operation", op,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
		"authorization", logger.MaskToken(creds.AccessToken),
	)

	return resp.StatusCode, body, nil
}

func success(status int) bool {
	return status >= 200 && status < 300
}

// whereEscaper escapes backslashes before quotes so a trailing backslash
// cannot consume the closing quote
var whereEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// escapeWhere quotes a value for a Xero where-clause string literal
func escapeWhere(value string) string {
	return whereEscaper.Replace(value)
}
