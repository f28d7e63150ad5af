package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tebatto/profilebot/internal/answer"
	"github.com/tebatto/profilebot/internal/service"
)

// fakeAsker returns a canned Answer or error and records the question.
type fakeAsker struct {
	result   service.Answer
	err      error
	question string
}

func (f *fakeAsker) Ask(_ context.Context, question string) (service.Answer, error) {
	f.question = question
	if f.err != nil {
		return service.Answer{}, f.err
	}
	return f.result, nil
}

// newTestServer builds a Server with a fresh registry and high rate limits so
// chat tests never trip the limiter.
func newTestServer(t *testing.T, f *fakeAsker, apiKey string) *Server {
	t.Helper()
	s, err := New(f, &Config{
		APIKey:    apiKey,
		RateLimit: 1000,
		RateBurst: 1000,
		Registry:  prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

func postChat(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.RemoteAddr = "127.0.0.1:1000"
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestChat_AnswerAndSources(t *testing.T) {
	t.Parallel()

	f := &fakeAsker{result: service.Answer{
		Text: "They are a platform engineer.",
		Sources: []service.Source{
			{Source: "cv.txt", Content: "platform engineer since 2019"},
		},
	}}
	s := newTestServer(t, f, "")

	w := postChat(t, s, `{"question":"what do they do?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if f.question != "what do they do?" {
		t.Errorf("question not forwarded: %q", f.question)
	}

	var got service.Answer
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Text != "They are a platform engineer." {
		t.Errorf("answer: %q", got.Text)
	}
	if len(got.Sources) != 1 || got.Sources[0].Source != "cv.txt" {
		t.Errorf("sources: %+v", got.Sources)
	}
}

func TestChat_InvalidBodyRejected(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAsker{}, "")

	w := postChat(t, s, `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid JSON, got %d", w.Code)
	}
}

func TestChat_BlankQuestionRejected(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAsker{}, "")

	w := postChat(t, s, `{"question":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank question, got %d", w.Code)
	}
}

func TestChat_GenerationFailureSummarized(t *testing.T) {
	t.Parallel()

	providerErr := fmt.Errorf("%w: POST https://api.internal/v1: 401 bad key sk-abc123", answer.ErrGeneration)
	s := newTestServer(t, &fakeAsker{err: providerErr}, "")

	w := postChat(t, s, `{"question":"anything"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "sk-abc123") || strings.Contains(body, "api.internal") {
		t.Errorf("provider internals leaked to client: %q", body)
	}
	if !strings.Contains(body, "generation failed") {
		t.Errorf("expected summarized generation message, got %q", body)
	}
}

func TestChat_UnknownErrorIsGeneric(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAsker{err: errors.New("index corrupted at /var/lib/x")}, "")

	w := postChat(t, s, `{"question":"anything"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "/var/lib/x") {
		t.Errorf("internal detail leaked: %q", w.Body.String())
	}
}

func TestChat_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAsker{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	req.RemoteAddr = "127.0.0.1:1000"
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}
