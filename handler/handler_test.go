package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/AnTengye/quotepo/config"
	"github.com/AnTengye/quotepo/middleware"
	"github.com/AnTengye/quotepo/model"
	"github.com/AnTengye/quotepo/service"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeXero serves the identity and accounting endpoints used by the handlers
type fakeXero struct {
	mu          sync.Mutex
	calls       map[string]int
	submitCode  int
	submitBody  string
	tenantsBody string
}

func newFakeXero(t *testing.T) (*fakeXero, *httptest.Server) {
	f := &fakeXero{
		calls:       make(map[string]int),
		submitCode:  http.StatusOK,
		submitBody:  `{"Status":"OK","PurchaseOrders":[{"PurchaseOrderNumber":"PO-0042"}]}`,
		tenantsBody: `[{"id":"c1","tenantId":"tenant-1","tenantType":"ORGANISATION","tenantName":"Demo Company"}]`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/connect/token", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":1800}`))
	})
	mux.HandleFunc("/connections", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Write([]byte(f.tenantsBody))
	})
	mux.HandleFunc("/api.xro/2.0/Contacts", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Write([]byte(`{"Contacts":[{"ContactID":"contact-1","Name":"Acme"}]}`))
	})
	mux.HandleFunc("/api.xro/2.0/PurchaseOrders", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.WriteHeader(f.submitCode)
		w.Write([]byte(f.submitBody))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeXero) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[r.Method+" "+r.URL.Path]++
}

func (f *fakeXero) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeXero) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakeArchive struct {
	prefix   string
	filename string
	size     int
	po       *model.PurchaseOrder
}

func (a *fakeArchive) Archive(_ context.Context, prefix, filename string, data []byte, po *model.PurchaseOrder) error {
	a.prefix, a.filename, a.size, a.po = prefix, filename, len(data), po
	return nil
}

type testEnv struct {
	cfg     *config.Config
	store   *service.SessionStore
	xero    *fakeXero
	archive *fakeArchive
	router  *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	fx, server := newFakeXero(t)

	cfg := &config.Config{
		Server: config.ServerConfig{MaxUploadSizeMB: 1},
		Xero: config.XeroConfig{
			ClientID:       "client",
			ClientSecret:   "secret",
			RedirectURI:    "http://localhost:5000/callback",
			Scopes:         config.DefaultScopes,
			AuthURL:        server.URL + "/identity/connect/authorize",
			TokenURL:       server.URL + "/connect/token",
			APIURL:         server.URL,
			TimeoutSeconds: 5,
		},
		Order: config.OrderConfig{
			AccountCode:     "400",
			TaxType:         "INPUT",
			DeliveryAddress: "Enablis Office",
			Currencies:      []string{"AUD", "NZD"},
			DefaultCurrency: "AUD",
			QuoteSection:    "QUOTE INFORMATION",
		},
		Auth: config.AuthConfig{JWTSecret: "test-secret", SessionExpireHours: 1, CookieName: "quotepo_session"},
	}

	store := service.NewSessionStore(10)
	xeroSvc := service.NewXeroService(&cfg.Xero)
	archive := &fakeArchive{}

	authHandler := NewAuthHandler(service.NewOAuthService(&cfg.Xero, xeroSvc), store)
	orderHandler := NewOrderHandler(cfg, xeroSvc, archive, store)

	router := gin.New()
	LoadTemplates(router)
	router.Use(middleware.Session(&cfg.Auth, store))
	router.GET("/", authHandler.Login)
	router.GET("/callback", authHandler.Callback)
	router.GET("/upload", orderHandler.UploadForm)
	router.POST("/upload", orderHandler.Upload)
	router.POST("/send_po", orderHandler.Send)
	router.GET("/api/order", orderHandler.Order)

	return &testEnv{cfg: cfg, store: store, xero: fx, archive: archive, router: router}
}

func (e *testEnv) do(t *testing.T, req *http.Request, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	token, _, err := middleware.GenerateSessionToken(sessionID, &e.cfg.Auth)
	if err != nil {
		t.Fatalf("Failed to sign session: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: e.cfg.Auth.CookieName, Value: token})

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) authorize(sessionID string) {
	e.store.CompleteAuthorization(sessionID, "at-1", "tenant-1", "Demo Company")
}

func quoteWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]any{
		{"QUOTE INFORMATION"},
		{"Reseller Contact", "Acme", "Sales Quotation", "Q-77"},
		{"Currency", "NZD", "Validity End Date", "31/12/2025"},
		{},
		{"Item Number", "Description", "Qty", "Unit Price"},
		{"A1", "Widget", 2, 10.5},
		{"A2", "Gadget", 1, 99},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("Failed to write row: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("Failed to write workbook: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write(data)
	writer.Close()

	req := httptest.NewRequest("POST", "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestLoginRedirectsWithState(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, httptest.NewRequest("GET", "/", nil), "session-1")

	if w.Code != http.StatusFound {
		t.Fatalf("Expected status 302, got %d", w.Code)
	}
	location, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("Invalid redirect: %v", err)
	}
	if location.Query().Get("response_type") != "code" {
		t.Errorf("Expected code flow, got %s", location.RawQuery)
	}

	sess := env.store.Get("session-1")
	if sess.State != model.StateAwaitingCallback {
		t.Errorf("Expected awaiting_callback, got %s", sess.State)
	}
	if sess.OAuthState == "" || sess.OAuthState != location.Query().Get("state") {
		t.Errorf("Expected stored state to match redirect, got %q", sess.OAuthState)
	}
}

func TestCallbackSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.store.BeginAuthorization("session-1", "state-1")

	w := env.do(t, httptest.NewRequest("GET", "/callback?code=code-1&state=state-1", nil), "session-1")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `href="/upload"`) {
		t.Error("Expected link to upload page")
	}

	sess := env.store.Get("session-1")
	if !sess.Authenticated() || sess.TenantID != "tenant-1" || sess.AccessToken != "at-1" {
		t.Errorf("Expected authenticated session, got %+v", sess)
	}
}

func TestCallbackAccessDeniedLeavesSessionUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	env.authorize("session-1")

	w := env.do(t, httptest.NewRequest("GET", "/callback?error=access_denied", nil), "session-1")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "access_denied") {
		t.Errorf("Expected error in body, got %s", w.Body.String())
	}

	sess := env.store.Get("session-1")
	if sess.Authenticated() || sess.State != model.StateUnauthenticated || sess.AccessToken != "" {
		t.Errorf("Expected session reset, got %+v", sess)
	}
	if env.xero.total() != 0 {
		t.Errorf("Expected no remote calls, got %d", env.xero.total())
	}
}

func TestCallbackStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		setup  func(*fakeXero)
		status int
	}{
		{"missing code", "/callback?state=state-1", nil, http.StatusBadRequest},
		{"state mismatch", "/callback?code=c&state=forged", nil, http.StatusBadRequest},
		{"no tenants", "/callback?code=c&state=state-1", func(f *fakeXero) { f.tenantsBody = "[]" }, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(env.xero)
			}
			env.store.BeginAuthorization("session-1", "state-1")

			w := env.do(t, httptest.NewRequest("GET", tt.query, nil), "session-1")

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if env.store.Get("session-1").Authenticated() {
				t.Error("Expected session to stay unauthenticated")
			}
		})
	}
}

func TestUploadFormShowsAuthorizationState(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, httptest.NewRequest("GET", "/upload", nil), "session-1")
	if !strings.Contains(w.Body.String(), "Authorize") {
		t.Error("Expected authorize link for unauthenticated session")
	}

	env.authorize("session-2")
	w = env.do(t, httptest.NewRequest("GET", "/upload", nil), "session-2")
	if !strings.Contains(w.Body.String(), "Demo Company") || !strings.Contains(w.Body.String(), `name="file"`) {
		t.Errorf("Expected upload form, got %s", w.Body.String())
	}
}

func TestUploadBuildsPendingOrder(t *testing.T) {
	env := newTestEnv(t)
	env.authorize("session-1")
	data := quoteWorkbook(t)

	w := env.do(t, uploadRequest(t, "quote.xlsx", data), "session-1")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{"Acme", "Widget", "NZD", "2025-12-31", `action="/send_po"`} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %q in preview", want)
		}
	}

	po := env.store.Get("session-1").PendingOrder
	if po == nil {
		t.Fatal("Expected pending order")
	}
	if po.Contact.ContactID != "contact-1" || len(po.LineItems) != 2 || po.Reference != "Q-77" {
		t.Errorf("Unexpected order: %+v", po)
	}
	if po.LineItems[0].Quantity != 2 || po.LineItems[0].UnitAmount != 10.5 {
		t.Errorf("Unexpected first line item: %+v", po.LineItems[0])
	}
	if env.xero.count("GET /api.xro/2.0/Contacts") != 1 {
		t.Error("Expected one contact lookup")
	}

	if env.archive.filename != "quote.xlsx" || env.archive.size != len(data) || env.archive.po == nil {
		t.Errorf("Expected upload to be archived, got %+v", env.archive)
	}
	if !strings.HasPrefix(env.archive.prefix, "tenant-1/session-1/") {
		t.Errorf("Unexpected archive prefix %s", env.archive.prefix)
	}
}

func TestUploadRequiresAuthorization(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, uploadRequest(t, "quote.xlsx", quoteWorkbook(t)), "session-1")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
	if env.xero.total() != 0 {
		t.Error("Expected no remote calls")
	}
}

func TestUploadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"unsupported extension", "quote.csv", []byte("a,b")},
		{"corrupt workbook", "quote.xlsx", []byte("not a zip")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.authorize("session-1")

			w := env.do(t, uploadRequest(t, tt.filename, tt.data), "session-1")

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
			if env.store.Get("session-1").PendingOrder != nil {
				t.Error("Expected no pending order")
			}
		})
	}
}

func TestUploadMissingFile(t *testing.T) {
	env := newTestEnv(t)
	env.authorize("session-1")

	w := env.do(t, httptest.NewRequest("POST", "/upload", nil), "session-1")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestSendWithoutPendingOrder(t *testing.T) {
	env := newTestEnv(t)
	env.authorize("session-1")

	w := env.do(t, httptest.NewRequest("POST", "/send_po", nil), "session-1")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "upload a spreadsheet first") {
		t.Errorf("Unexpected body %s", w.Body.String())
	}
	if env.xero.total() != 0 {
		t.Errorf("Expected no remote calls, got %d", env.xero.total())
	}
}

func TestSendSubmitsAndClearsOrder(t *testing.T) {
	env := newTestEnv(t)
	env.authorize("session-1")
	env.store.SetPendingOrder("session-1", &model.PurchaseOrder{Reference: "Q-1", Status: model.StatusDraft})

	w := env.do(t, httptest.NewRequest("POST", "/send_po", nil), "session-1")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "PO-0042") {
		t.Error("Expected raw response in page")
	}
	if env.store.Get("session-1").PendingOrder != nil {
		t.Error("Expected pending order to be cleared")
	}
	if env.xero.count("POST /api.xro/2.0/PurchaseOrders") != 1 {
		t.Error("Expected one submission")
	}
}

func TestSendRejected(t *testing.T) {
	env := newTestEnv(t)
	env.xero.submitCode = http.StatusBadRequest
	env.xero.submitBody = `{"Message":"A validation exception occurred"}`
	env.authorize("session-1")
	env.store.SetPendingOrder("session-1", &model.PurchaseOrder{Reference: "Q-1"})

	w := env.do(t, httptest.NewRequest("POST", "/send_po", nil), "session-1")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "A validation exception occurred") {
		t.Errorf("Expected response body verbatim, got %s", w.Body.String())
	}
	if env.store.Get("session-1").PendingOrder == nil {
		t.Error("Expected pending order to be kept after rejection")
	}
}

func TestSendUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	env.store.SetPendingOrder("session-1", &model.PurchaseOrder{Reference: "Q-1"})

	w := env.do(t, httptest.NewRequest("POST", "/send_po", nil), "session-1")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
	if env.xero.total() != 0 {
		t.Error("Expected no remote calls")
	}
}

func TestOrderAPI(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, httptest.NewRequest("GET", "/api/order", nil), "session-1")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	env.store.SetPendingOrder("session-1", &model.PurchaseOrder{Reference: "Q-9", CurrencyCode: "AUD"})
	w = env.do(t, httptest.NewRequest("GET", "/api/order", nil), "session-1")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"Reference":"Q-9"`) {
		t.Errorf("Expected order JSON, got %s", w.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{service.ErrNotAuthenticated, http.StatusUnauthorized},
		{service.ErrAuthorization, http.StatusBadRequest},
		{service.ErrSpreadsheetRead, http.StatusBadRequest},
		{service.ErrContactResolution, http.StatusBadRequest},
		{service.ErrNoPendingOrder, http.StatusBadRequest},
		{service.ErrTokenExchange, http.StatusInternalServerError},
		{service.ErrTenantDiscovery, http.StatusInternalServerError},
		{&service.RemoteRequestError{Kind: service.ErrSubmission, StatusCode: 400}, http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.status {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.status)
		}
	}
}
