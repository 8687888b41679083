package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(RequestIDKey, "req-1")
	return c, w
}

func TestErrorEnvelopeCarriesRequestID(t *testing.T) {
	c, w := newTestContext()
	AbortError(c, CodeNotFound, "missing")
	if w.Code != http.StatusOK || !c.IsAborted() {
		t.Fatalf("envelope errors use HTTP 200 and abort, got %d aborted=%v", w.Code, c.IsAborted())
	}
	var body struct {
		StatusCode int               `json:"status_code"`
		Data       map[string]string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if body.StatusCode != CodeNotFound || body.Data[RequestIDKey] != "req-1" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestStatusUsesRealHTTPCode(t *testing.T) {
	c, w := newTestContext()
	AbortStatus(c, http.StatusUnauthorized, gin.H{"error": "bad signature"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if body["requestId"] != "req-1" || body["error"] != "bad signature" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestAppErrorHTTPStatus(t *testing.T) {
	base := errors.New("db down")
	err := WrapError(CodeConflict, "exists", base)
	if err.HTTPStatus() != http.StatusConflict || !errors.Is(err, base) {
		t.Fatalf("unexpected app error: %v", err)
	}
	if HTTPStatusFor(12345) != http.StatusInternalServerError {
		t.Fatalf("unknown code should map to 500")
	}
}
