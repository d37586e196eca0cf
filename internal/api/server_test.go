package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thereceipt/receipt-studio/internal/auth"
	"github.com/thereceipt/receipt-studio/internal/catalog"
	"github.com/thereceipt/receipt-studio/internal/config"
	"github.com/thereceipt/receipt-studio/internal/credits"
	"github.com/thereceipt/receipt-studio/internal/draft"
	"github.com/thereceipt/receipt-studio/internal/events"
	"github.com/thereceipt/receipt-studio/internal/export"
	"github.com/thereceipt/receipt-studio/internal/printer"
	"github.com/thereceipt/receipt-studio/internal/session"
	"github.com/thereceipt/receipt-studio/internal/store"
	"github.com/thereceipt/receipt-studio/pkg/apperror"
	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

const webhookSecret = "whsec"

type stubExporter struct{}

func (stubExporter) Export(ctx context.Context, doc *receiptformat.Document, format export.Format) (*export.Artifact, error) {
	return &export.Artifact{
		Format:      format,
		ContentType: format.ContentType(),
		Data:        []byte("%PDF-1.7\n%%EOF\n"),
		WidthMM:     80,
		HeightMM:    120,
		Pages:       1,
	}, nil
}

type testEnv struct {
	server  *Server
	tokens  *auth.TokenManager
	credits *credits.Service
}

func newTestEnv(t *testing.T, requests int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	bus := events.NewBus()
	svc := credits.NewService(store.NewMemoryCredits(), bus, credits.Options{DownloadCost: 1, WebhookSecret: webhookSecret}, nil)
	saved := store.NewMemoryReceipts()

	mgr := session.NewManager(session.Deps{
		Templates: cat,
		Drafts:    draft.NewMemoryStore(),
		Saved:     saved,
		Exporter:  stubExporter{},
		Credits:   svc,
		Bus:       bus,
	}, session.ManagerConfig{Debounce: 10 * time.Millisecond})
	t.Cleanup(mgr.Shutdown)

	cfg := &config.Config{}
	cfg.RateLimit.Requests = requests
	cfg.RateLimit.Duration = 60

	tokens := auth.NewTokenManager("secret", time.Hour)
	srv := NewServer(Deps{
		Config:   cfg,
		Catalog:  cat,
		Sessions: mgr,
		Credits:  svc,
		Saved:    saved,
		Tokens:   tokens,
		Bus:      bus,
	})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return &testEnv{server: srv, tokens: tokens, credits: svc}
}

func (e *testEnv) token(t *testing.T, user string) string {
	t.Helper()
	tok, err := e.tokens.Issue(user, "")
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

type envelope struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Kind    apperror.Kind         `json:"kind"`
	Data    json.RawMessage       `json:"data"`
	Errors  []apperror.FieldError `json:"errors"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerClientID, "browser-1")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (e *testEnv) open(t *testing.T, token string) string {
	t.Helper()
	w, env := e.do(t, "POST", "/api/v1/sessions", token, map[string]string{"template_id": "walgreens"})
	if w.Code != http.StatusCreated {
		t.Fatalf("open session: Expected 201, got %d: %s", w.Code, w.Body)
	}
	var v sessionView
	json.Unmarshal(env.Data, &v)
	if v.ID == "" || v.Document == nil {
		t.Fatalf("Expected session id and document, got %s", env.Data)
	}
	return v.ID
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 100)
	w, _ := env.do(t, "GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if w.Header().Get(headerRequestID) == "" {
		t.Error("Expected a request id header")
	}
}

func TestTemplates(t *testing.T) {
	env := newTestEnv(t, 100)

	w, resp := env.do(t, "GET", "/api/v1/templates", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(string(resp.Data), `"walgreens"`) {
		t.Errorf("Expected template list with walgreens, got %d %s", w.Code, resp.Data)
	}

	w, resp = env.do(t, "GET", "/api/v1/templates/nope", "", nil)
	if w.Code != http.StatusNotFound || resp.Kind != apperror.KindNotFound {
		t.Errorf("Expected 404 not_found, got %d %s", w.Code, resp.Kind)
	}

	w, resp = env.do(t, "GET", "/api/v1/sections/palette", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(string(resp.Data), "items_list") {
		t.Errorf("Expected palette, got %d %s", w.Code, resp.Data)
	}
}

func TestSession_EditFlow(t *testing.T) {
	env := newTestEnv(t, 100)
	id := env.open(t, "")
	base := "/api/v1/sessions/" + id

	w, resp := env.do(t, "PATCH", base+"/sections/wag-items", "",
		`{"op":"update_item","index":0,"quantity":2,"name":"Soda","price":"1.50"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update_item: Expected 200, got %d: %s", w.Code, w.Body)
	}
	var v sessionView
	json.Unmarshal(resp.Data, &v)
	if v.Revision != 1 {
		t.Errorf("Expected revision 1, got %d", v.Revision)
	}

	w, resp = env.do(t, "PATCH", base+"/sections/wag-items", "", `{"op":"update_item","index":0,"quantity":0}`)
	if w.Code != http.StatusUnprocessableEntity || resp.Kind != apperror.KindValidation {
		t.Fatalf("Expected 422 validation_failed, got %d %s", w.Code, w.Body)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Field != "sections[3].items[0].quantity" {
		t.Errorf("Expected quantity field error, got %+v", resp.Errors)
	}

	w, _ = env.do(t, "PATCH", base+"/sections/missing", "", `{"op":"set_message","message":"x"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown section, got %d", w.Code)
	}

	w, _ = env.do(t, "POST", base+"/sections", "", map[string]string{"type": "barcode", "after": "wag-header"})
	if w.Code != http.StatusCreated {
		t.Errorf("add section: Expected 201, got %d: %s", w.Code, w.Body)
	}
	w, _ = env.do(t, "POST", base+"/sections/reorder", "", map[string]int{"from": 0, "to": 1})
	if w.Code != http.StatusOK {
		t.Errorf("reorder: Expected 200, got %d: %s", w.Code, w.Body)
	}

	w, _ = env.do(t, "GET", base+"/preview?format=text", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Soda") {
		t.Errorf("Expected text preview with Soda, got %d %s", w.Code, w.Body)
	}
	w, _ = env.do(t, "GET", base+"/preview", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Expected html preview, got %d %s", w.Code, w.Header().Get("Content-Type"))
	}
}

func TestSession_ImportExport(t *testing.T) {
	env := newTestEnv(t, 100)
	id := env.open(t, "")
	base := "/api/v1/sessions/" + id

	env.do(t, "PATCH", base+"/sections/wag-items", "", `{"op":"update_item","index":0,"name":"Soda"}`)

	w, _ := env.do(t, "GET", base+"/document", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: Expected 200, got %d", w.Code)
	}
	exported := w.Body.Bytes()

	other := env.open(t, "")
	w, _ = env.do(t, "PUT", "/api/v1/sessions/"+other+"/document", "", exported)
	if w.Code != http.StatusOK {
		t.Fatalf("import: Expected 200, got %d: %s", w.Code, w.Body)
	}
	w, _ = env.do(t, "GET", "/api/v1/sessions/"+other+"/document", "", nil)
	if !bytes.Equal(w.Body.Bytes(), exported) {
		t.Error("Expected identical document after import")
	}

	w, resp := env.do(t, "PUT", "/api/v1/sessions/"+other+"/document", "", `{"version":"9"}`)
	if w.Code != http.StatusUnprocessableEntity || resp.Kind != apperror.KindValidation {
		t.Errorf("Expected 422 for invalid import, got %d %s", w.Code, w.Body)
	}
}

func TestDownload_Credits(t *testing.T) {
	env := newTestEnv(t, 100)
	tok := env.token(t, "user-1")
	id := env.open(t, tok)
	download := "/api/v1/sessions/" + id + "/download?format=pdf"

	w, resp := env.do(t, "POST", download, env.token(t, "user-2"), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected another caller to not see the session, got %d %s", w.Code, resp.Kind)
	}

	w, resp = env.do(t, "POST", download, tok, nil)
	if w.Code != http.StatusPaymentRequired || resp.Kind != apperror.KindInsufficientCredits {
		t.Fatalf("Expected 402 insufficient_credits, got %d %s", w.Code, w.Body)
	}

	w, resp = env.do(t, "GET", "/api/v1/credits", tok, nil)
	if w.Code != http.StatusOK || !strings.Contains(string(resp.Data), `"balance":0`) {
		t.Errorf("Expected balance 0, got %s", resp.Data)
	}

	body := []byte(`{"id":"pay_1","type":"credits.granted","user_id":"user-1","credits":1}`)
	req := httptest.NewRequest("POST", "/api/v1/webhooks/payments", bytes.NewReader(body))
	req.Header.Set(credits.SignatureHeader, credits.Sign([]byte(webhookSecret), body))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook: Expected 200, got %d: %s", rec.Code, rec.Body)
	}

	w, _ = env.do(t, "POST", download, tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download: Expected 200, got %d: %s", w.Code, w.Body)
	}
	if w.Header().Get("X-Credits-Balance") != "0" || !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("Expected PDF bytes and balance 0, got %q %q", w.Header().Get("X-Credits-Balance"), w.Body.String())
	}

	w, resp = env.do(t, "GET", "/api/v1/credits/history", tok, nil)
	if w.Code != http.StatusOK || !strings.Contains(string(resp.Data), `"DOWNLOAD"`) {
		t.Errorf("Expected a DOWNLOAD ledger row, got %s", resp.Data)
	}
}

func TestDownload_RequiresUser(t *testing.T) {
	env := newTestEnv(t, 100)
	id := env.open(t, "")

	w, resp := env.do(t, "POST", "/api/v1/sessions/"+id+"/download", "", nil)
	if w.Code != http.StatusUnauthorized || resp.Kind != apperror.KindUnauthorized {
		t.Errorf("Expected 401, got %d %s", w.Code, w.Body)
	}

	w, _ = env.do(t, "GET", "/api/v1/credits", "garbage", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a bad token, got %d", w.Code)
	}
}

func TestWebhook_BadSignature(t *testing.T) {
	env := newTestEnv(t, 100)

	req := httptest.NewRequest("POST", "/api/v1/webhooks/payments", strings.NewReader(`{"id":"p","type":"credits.granted","user_id":"u","credits":5}`))
	req.Header.Set(credits.SignatureHeader, "deadbeef")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
	acct, _ := env.credits.Balance(context.Background(), "u")
	if acct.Balance != 0 {
		t.Errorf("Expected no credits granted, got %d", acct.Balance)
	}
}

func TestSaveAndList(t *testing.T) {
	env := newTestEnv(t, 100)
	tok := env.token(t, "user-1")
	id := env.open(t, tok)

	w, _ := env.do(t, "POST", "/api/v1/sessions/"+id+"/save", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("save: Expected 200, got %d: %s", w.Code, w.Body)
	}

	w, resp := env.do(t, "GET", "/api/v1/saved", tok, nil)
	if w.Code != http.StatusOK || !strings.Contains(string(resp.Data), `"template_id":"walgreens"`) {
		t.Errorf("Expected the saved receipt listed, got %s", resp.Data)
	}

	w, _ = env.do(t, "DELETE", "/api/v1/saved/walgreens", tok, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
}

func TestExport_RateLimited(t *testing.T) {
	env := newTestEnv(t, 2)
	id := env.open(t, "")
	path := "/api/v1/sessions/" + id + "/export?format=pdf"

	for i := 0; i < 2; i++ {
		w, resp := env.do(t, "POST", path, "", nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("export %d: Expected 201, got %d %s", i, w.Code, w.Body)
		}
		var art artifactView
		json.Unmarshal(resp.Data, &art)
		w, _ = env.do(t, "GET", "/api/v1/sessions/"+id+"/artifacts/"+art.ID, "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("Expected artifact lookup, got %d", w.Code)
		}
	}

	w, resp := env.do(t, "POST", path, "", nil)
	if w.Code != http.StatusTooManyRequests || resp.Kind != apperror.KindRateLimited {
		t.Errorf("Expected 429, got %d %s", w.Code, w.Body)
	}
}

func TestCommandEndpoint(t *testing.T) {
	env := newTestEnv(t, 100)
	id := env.open(t, "")
	path := "/api/v1/sessions/" + id + "/command"

	w, _ := env.do(t, "POST", path, "", map[string]string{"command": "set wag-items set_total value=9.99"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
	}

	w, _ = env.do(t, "POST", path, "", map[string]string{"command": "remove nope"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}

	w, _ = env.do(t, "POST", path, "", map[string]string{"command": "set wag-items update_item index=0 quantity=0"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for an invalid edit, got %d", w.Code)
	}
}

func TestCloseSession(t *testing.T) {
	env := newTestEnv(t, 100)
	id := env.open(t, "")

	w, _ := env.do(t, "DELETE", "/api/v1/sessions/"+id, "", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}
	w, _ = env.do(t, "GET", "/api/v1/sessions/"+id, "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after close, got %d", w.Code)
	}
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		err  error
		code int
		kind apperror.Kind
	}{
		{credits.ErrInsufficientCredits, 402, apperror.KindInsufficientCredits},
		{fmt.Errorf("wrapped: %w", session.ErrExportSuperseded), 409, apperror.KindSuperseded},
		{&export.Error{Stage: export.StageFonts, Err: export.ErrFontsNotReady}, 502, apperror.KindExportFailed},
		{&export.Error{Stage: export.StageRender, Err: context.DeadlineExceeded}, 502, apperror.KindExportFailed},
		{&receiptformat.ValidationError{Index: -1, Field: "name", Reason: "required"}, 422, apperror.KindValidation},
		{receiptformat.ErrInvalidDocument, 422, apperror.KindValidation},
		{session.ErrSessionNotFound, 404, apperror.KindNotFound},
		{catalog.ErrNotFound, 404, apperror.KindNotFound},
		{session.ErrSaveFailed, 503, apperror.KindStorage},
		{session.ErrAnonymous, 401, apperror.KindUnauthorized},
		{credits.ErrInvalidSignature, 401, apperror.KindUnauthorized},
		{receiptformat.ErrUnknownSectionType, 400, apperror.KindBadRequest},
		{fmt.Errorf("%w after 3 attempts", printer.ErrPrintFailed), 502, apperror.KindPrinter},
		{errors.New("boom"), 500, apperror.KindInternal},
	}

	for _, tt := range tests {
		got := toAppError(tt.err)
		if got.Code != tt.code || got.Kind != tt.kind {
			t.Errorf("%v: Expected %d %s, got %d %s", tt.err, tt.code, tt.kind, got.Code, got.Kind)
		}
	}
}

func TestRateLimiter_KeysCallers(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	if !rl.limiter("a").Allow() || rl.limiter("a").Allow() {
		t.Error("Expected one request per minute for a")
	}
	if !rl.limiter("b").Allow() {
		t.Error("Expected b to have its own budget")
	}

	rl.now = func() time.Time { return time.Now().Add(time.Hour) }
	rl.limiter("c")
	if rl.Len() != 1 {
		t.Errorf("Expected idle callers collected, got %d", rl.Len())
	}
}
