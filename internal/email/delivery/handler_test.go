package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	emaildomain "supportdesk-backend/internal/email/domain"
	"supportdesk-backend/internal/email/repository"
	"supportdesk-backend/internal/email/usecase"

	"github.com/gin-gonic/gin"
)

type stubDispatcher struct {
	mu   sync.Mutex
	sent []emaildomain.OutboundMessage
}

func (s *stubDispatcher) Send(_ context.Context, msg emaildomain.OutboundMessage) (*emaildomain.DeliveryReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return &emaildomain.DeliveryReceipt{OK: true, MessageID: fmt.Sprintf("<sent-%d@test>", len(s.sent)), Provider: "stub"}, nil
}

func setupRouter(t *testing.T, dispatcher emaildomain.MailDispatcher) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryEmailRepository()
	caps := usecase.Capabilities{Dispatcher: dispatcher}
	cfg := usecase.PipelineConfig{DefaultFrom: "desk@example.com", BatchLimit: 10}
	processor := usecase.NewEmailProcessor(repo, cfg, caps, nil)
	sender := usecase.NewReplyDispatcher(repo, cfg, caps, nil)
	batch := usecase.NewBatchProcessor(repo, processor, cfg, nil)
	emails := usecase.NewEmailUsecase(repo, processor, caps, nil)
	h := NewEmailHandler(emails, processor, sender, batch, "testdata/missing.csv", nil)

	r := gin.New()
	api := r.Group("/api")
	api.GET("/fetch-mails", h.FetchMails)
	api.POST("/process-pending", h.ProcessPending)
	api.GET("/emails", h.ListEmails)
	api.POST("/emails", h.CreateEmail)
	api.POST("/emails/send-pending", h.SendPending)
	api.GET("/emails/:id", h.GetEmail)
	api.POST("/emails/:id/process", h.ProcessEmail)
	api.POST("/emails/:id/send", h.SendReply)
	api.POST("/emails/:id/status", h.UpdateStatus)
	api.GET("/stats/summary", h.StatsSummary)
	api.POST("/sample/load", h.LoadSample)
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func createEmail(t *testing.T, r http.Handler, process bool) map[string]interface{} {
	t.Helper()
	path := "/api/emails"
	if process {
		path += "?process=true"
	}
	w, resp := doJSON(r, http.MethodPost, path, map[string]interface{}{
		"from":     "Jane Doe <jane@example.com>",
		"subject":  "Support request: refund",
		"bodyText": "Please help, my order ORD-12345 arrived broken.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	return resp["email"].(map[string]interface{})
}

func TestEmailLifecycle(t *testing.T) {
	dispatcher := &stubDispatcher{}
	r := setupRouter(t, dispatcher)

	email := createEmail(t, r, false)
	id := email["id"].(string)

	// No draft yet
	w, resp := doJSON(r, http.MethodPost, "/api/emails/"+id+"/send", nil)
	if w.Code != http.StatusBadRequest || resp["ok"] != false {
		t.Fatalf("send without draft: status = %d, body = %s", w.Code, w.Body.String())
	}

	w, resp = doJSON(r, http.MethodPost, "/api/emails/"+id+"/process", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("process status = %d, body = %s", w.Code, w.Body.String())
	}
	processed := resp["email"].(map[string]interface{})
	if processed["draftResponse"] == "" {
		t.Error("expected a draft after processing")
	}

	w, resp = doJSON(r, http.MethodPost, "/api/emails/"+id+"/send", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("send status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := resp["email"].(map[string]interface{})["status"]; got != string(emaildomain.StatusResponded) {
		t.Errorf("status after send = %v", got)
	}
	if len(dispatcher.sent) != 1 || dispatcher.sent[0].To != "jane@example.com" {
		t.Errorf("sent = %+v", dispatcher.sent)
	}

	// Second send without force is a conflict
	w, _ = doJSON(r, http.MethodPost, "/api/emails/"+id+"/send", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("resend status = %d, want 409", w.Code)
	}

	w, _ = doJSON(r, http.MethodPost, "/api/emails/"+id+"/send", map[string]interface{}{"force": true})
	if w.Code != http.StatusOK {
		t.Errorf("forced resend status = %d, want 200", w.Code)
	}
}

func TestUpdateStatus(t *testing.T) {
	r := setupRouter(t, nil)
	id := createEmail(t, r, false)["id"].(string)

	tests := []struct {
		name       string
		body       map[string]interface{}
		wantStatus int
	}{
		{name: "missing status", body: map[string]interface{}{}, wantStatus: http.StatusBadRequest},
		{name: "unknown status", body: map[string]interface{}{"status": "closed"}, wantStatus: http.StatusBadRequest},
		{name: "resolve", body: map[string]interface{}{"status": "resolved"}, wantStatus: http.StatusOK},
		{name: "backwards", body: map[string]interface{}{"status": "pending"}, wantStatus: http.StatusConflict},
		{name: "backwards forced", body: map[string]interface{}{"status": "pending", "force": true}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := doJSON(r, http.MethodPost, "/api/emails/"+id+"/status", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestUnavailableCapabilities(t *testing.T) {
	r := setupRouter(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "fetch without source", method: http.MethodGet, path: "/api/fetch-mails", wantStatus: http.StatusServiceUnavailable},
		{name: "bulk send without dispatcher", method: http.MethodPost, path: "/api/emails/send-pending", wantStatus: http.StatusServiceUnavailable},
		{name: "unknown email", method: http.MethodGet, path: "/api/emails/nope", wantStatus: http.StatusNotFound},
		{name: "process unknown email", method: http.MethodPost, path: "/api/emails/nope/process", wantStatus: http.StatusNotFound},
		{name: "missing sample file", method: http.MethodPost, path: "/api/sample/load", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doJSON(r, tt.method, tt.path, nil)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if resp["ok"] != false {
				t.Errorf("ok = %v, want false", resp["ok"])
			}
		})
	}
}

func TestProcessPendingAndSendPending(t *testing.T) {
	dispatcher := &stubDispatcher{}
	r := setupRouter(t, dispatcher)
	createEmail(t, r, false)
	createEmail(t, r, false)

	w, resp := doJSON(r, http.MethodPost, "/api/process-pending", map[string]interface{}{"limit": 5})
	if w.Code != http.StatusOK {
		t.Fatalf("process-pending status = %d, body = %s", w.Code, w.Body.String())
	}
	if resp["count"] != float64(2) {
		t.Errorf("processed count = %v, want 2", resp["count"])
	}

	w, resp = doJSON(r, http.MethodPost, "/api/emails/send-pending", map[string]interface{}{"limit": 10, "concurrency": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("send-pending status = %d, body = %s", w.Code, w.Body.String())
	}
	if resp["sent"] != float64(2) || resp["failed"] != float64(0) {
		t.Errorf("send-pending = %v", resp)
	}

	w, resp = doJSON(r, http.MethodGet, "/api/emails?status=responded", nil)
	if w.Code != http.StatusOK || resp["total"] != float64(2) {
		t.Errorf("list responded = %d %v", w.Code, resp)
	}
}

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", emaildomain.ErrNotFound), http.StatusNotFound},
		{emaildomain.ErrValidation, http.StatusBadRequest},
		{emaildomain.ErrInvalidRecipient, http.StatusBadRequest},
		{emaildomain.ErrNoDraft, http.StatusBadRequest},
		{emaildomain.ErrAlreadyResponded, http.StatusConflict},
		{emaildomain.ErrInvalidTransition, http.StatusConflict},
		{emaildomain.ErrCapabilityUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: timeout", emaildomain.ErrTransportFailure), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			writeError(c, tt.err)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
