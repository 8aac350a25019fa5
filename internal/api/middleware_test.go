package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := Chain(RequestID())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFrom(r.Context())
	}))

	// Переданный идентификатор проходит насквозь в контекст и ответ.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req-42" {
		t.Errorf("request id в контексте = %q, ожидали req-42", seen)
	}
	if got := rec.Header().Get(requestIDHeader); got != "req-42" {
		t.Errorf("заголовок ответа = %q, ожидали req-42", got)
	}

	// Без заголовка идентификатор генерируется.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if seen == "" || seen == "req-42" {
		t.Errorf("сгенерированный request id = %q", seen)
	}
	if rec.Header().Get(requestIDHeader) != seen {
		t.Error("сгенерированный идентификатор должен попасть в заголовок ответа")
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Chain(RequestID(), Recovery(logger), Logging(logger))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("статус = %d, ожидали 500", rec.Code)
	}
}
