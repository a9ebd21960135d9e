package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/ygo-judge/internal/agent"
	"github.com/MimeLyc/ygo-judge/internal/cards"
	"github.com/MimeLyc/ygo-judge/internal/llm"
	"github.com/MimeLyc/ygo-judge/internal/metrics"
	"github.com/MimeLyc/ygo-judge/internal/persistence"
	"github.com/MimeLyc/ygo-judge/internal/tools"
)

func newStore(t *testing.T) *persistence.SQLiteStore {
	t.Helper()
	store, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "yugioh.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.ReplaceCards(context.Background(), []cards.Card{
		{Name: "Ash Blossom & Joyous Spring", TypeLabel: "Tuner Effect Monster", Description: "negate that effect", ATK: cards.IntPtr(0), DEF: cards.IntPtr(1800), Level: cards.IntPtr(3)},
		{Name: "Shaddoll Fusion", TypeLabel: "Normal Spell", Description: "Fusion Summon 1 Shaddoll"},
		{Name: "El Shaddoll Winda", TypeLabel: "Fusion Effect Monster", Description: "Cannot be destroyed by an opponent's card effects."},
	}))
	return store
}

type fakeAsker struct {
	mu      sync.Mutex
	got     []agent.Inquiry
	events  []agent.Event
	inquiry string
}

func (f *fakeAsker) Ask(ctx context.Context, inq agent.Inquiry) (string, <-chan agent.Event) {
	f.mu.Lock()
	f.got = append(f.got, inq)
	f.mu.Unlock()

	out := make(chan agent.Event)
	go func() {
		defer close(out)
		for _, ev := range f.events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return f.inquiry, out
}

type sseEvent struct {
	Name string
	Data streamMessage
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var out []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.Name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.Data))
			}
		}
		out = append(out, ev)
	}
	return out
}

func postInquiry(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/inquiries", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_CardSearch(t *testing.T) {
	srv := NewServer(newStore(t), &fakeAsker{})

	req := httptest.NewRequest(http.MethodGet, "/api/cards/search?q=shaddoll", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "search_results", resp.Type)
	assert.Equal(t, []string{"El Shaddoll Winda", "Shaddoll Fusion"}, cards.Names(resp.Results))

	req = httptest.NewRequest(http.MethodGet, "/api/cards/search?q=shaddoll&limit=1", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, 1)
}

func TestServer_CardSearchEdgeCases(t *testing.T) {
	srv := NewServer(newStore(t), &fakeAsker{})

	tests := []struct {
		name   string
		method string
		url    string
		code   int
		body   string
	}{
		{name: "blank query", method: http.MethodGet, url: "/api/cards/search?q=%20", code: http.StatusOK, body: `"results":[]`},
		{name: "bad limit", method: http.MethodGet, url: "/api/cards/search?q=ash&limit=zero", code: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodPost, url: "/api/cards/search?q=ash", code: http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.url, nil))
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), tt.body)
			}
		})
	}
}

func TestServer_InquiryStreamsResults(t *testing.T) {
	asker := &fakeAsker{
		inquiry: "inq-1",
		events: []agent.Event{
			{Result: &agent.TurnResult{Thought: &agent.Thought{Content: "Check Ash."}, Action: &agent.Action{Name: "analyze_mechanics", Input: "Ash Blossom & Joyous Spring"}}},
			{Result: &agent.TurnResult{Observation: &agent.Observation{Content: "Effect type: Quick"}}},
			{Result: &agent.TurnResult{Answer: &agent.Answer{Explanation: "It sends from the Deck.", Ruling: "Yes."}}},
		},
	}
	srv := NewServer(newStore(t), asker)

	rec := postInquiry(t, srv, `{"question":"Can Ash negate Shaddoll Fusion?","cards":[{"name":"Ash Blossom & Joyous Spring","humanReadableCardType":"Tuner Effect Monster","desc":"negate"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "inq-1", rec.Header().Get("X-Inquiry-ID"))

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, "agent_response", events[0].Name)
	assert.Equal(t, "agent_response", events[0].Data.Type)
	assert.Equal(t, "Check Ash.", events[0].Data.Data.Thought.Content)
	assert.Equal(t, "Yes.", events[2].Data.Data.Answer.Ruling)
	assert.Equal(t, "done", events[3].Name)
	assert.Equal(t, "inq-1", events[3].Data.InquiryID)

	require.Len(t, asker.got, 1)
	assert.Equal(t, "Tuner Effect Monster", asker.got[0].Cards[0].TypeLabel)
}

func TestServer_InquiryStreamsError(t *testing.T) {
	asker := &fakeAsker{
		inquiry: "inq-2",
		events: []agent.Event{
			{Result: &agent.TurnResult{Thought: &agent.Thought{Content: "start"}}},
			{Err: &llm.ProviderError{Provider: "openai", StatusCode: 429, Err: errors.New("rate limited")}},
		},
	}
	srv := NewServer(newStore(t), asker)

	rec := postInquiry(t, srv, `{"question":"Q","cards":[]}`)
	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, "error", events[1].Name)
	assert.Contains(t, events[1].Data.Error, "rate limited")
	assert.Equal(t, "done", events[2].Name)
}

func TestServer_InquiryValidation(t *testing.T) {
	srv := NewServer(newStore(t), &fakeAsker{})

	for name, body := range map[string]string{
		"invalid json":  `{`,
		"no question":   `{"question":"  ","cards":[]}`,
		"nameless card": `{"question":"Q","cards":[{"desc":"x"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := postInquiry(t, srv, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/inquiries", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type scriptedGateway struct {
	mu      sync.Mutex
	replies []string
}

func (g *scriptedGateway) Complete(context.Context, []llm.Message, llm.Sampling) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.replies) == 0 {
		return "Thought: nothing left", nil
	}
	reply := g.replies[0]
	g.replies = g.replies[1:]
	return reply, nil
}

type noRulings struct{}

func (noRulings) Search(context.Context, string, []string, string) ([]cards.Ruling, error) {
	return nil, nil
}

func TestServer_InquiryWithJudge(t *testing.T) {
	registry, err := tools.NewDefaultRegistry(noRulings{}, nil)
	require.NoError(t, err)

	collector := metrics.New()
	judge, err := agent.NewJudge(&scriptedGateway{replies: []string{
		"Thought: a\nAction: analyze_mechanics: Shaddoll Fusion\nPAUSE",
		"Thought: b\nAction: search_rulings: Shaddoll Fusion\nPAUSE",
		"Thought: c\nAction: search_rulebook: fusion summon\nPAUSE",
		"Thought: r1", "Thought: r2", "Thought: r3",
		"Answer: It is a Normal Spell.\nRuling: It can be chained to.",
	}}, registry, agent.WithJudgeRecorder(collector))
	require.NoError(t, err)

	srv := NewServer(newStore(t), judge, WithMetrics(collector.Handler()))
	rec := postInquiry(t, srv, `{"question":"Can Shaddoll Fusion be chained to?","cards":[{"name":"Shaddoll Fusion","humanReadableCardType":"Normal Spell","desc":"Fusion Summon 1 \"Shaddoll\" Fusion Monster"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseSSE(t, rec.Body.String())
	var answers int
	for _, ev := range events {
		if ev.Data.Data != nil && ev.Data.Data.Answer != nil {
			answers++
			assert.Equal(t, "It can be chained to.", ev.Data.Data.Answer.Ruling)
		}
	}
	assert.Equal(t, 1, answers)
	assert.Equal(t, "done", events[len(events)-1].Name)
	assert.Contains(t, rec.Body.String(), "No rulings found for 'Shaddoll Fusion'.")
	assert.Contains(t, rec.Body.String(), "no relevant context found")

	metricsRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metricsRec.Body.String(), `ygo_judge_inquiries_total{outcome="answered"} 1`)
}

type failingHealth struct{}

func (failingHealth) Ping(context.Context) error { return errors.New("disk gone") }
func (failingHealth) Stats(context.Context) (persistence.Stats, error) {
	return persistence.Stats{}, nil
}

func TestServer_Health(t *testing.T) {
	store := newStore(t)
	srv := NewServer(store, &fakeAsker{}, WithHealthChecker(store))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 3, resp.Stats.Cards)

	srv = NewServer(store, &fakeAsker{}, WithHealthChecker(failingHealth{}))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk gone")
}

func TestServer_CORS(t *testing.T) {
	srv := NewServer(newStore(t), &fakeAsker{}, WithAllowedOrigin("http://localhost:3000"))

	req := httptest.NewRequest(http.MethodOptions, "/api/inquiries", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	req = httptest.NewRequest(http.MethodGet, "/api/cards/search?q=ash", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Expose-Headers"))

	req = httptest.NewRequest(http.MethodGet, "/api/cards/search?q=ash", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_CORSDisabledWithoutOrigin(t *testing.T) {
	srv := NewServer(newStore(t), &fakeAsker{})

	req := httptest.NewRequest(http.MethodGet, "/api/cards/search?q=ash", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_ServesSPAFromStaticDir(t *testing.T) {
	staticDir := filepath.Join(t.TempDir(), "web")
	require.NoError(t, os.MkdirAll(staticDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>spa</html>"), 0o644))

	server := NewServer(newStore(t), &fakeAsker{}, WithUI(staticDir, true))

	for _, url := range []string{"/", "/inquiry/abc"} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()

		server.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "spa")
	}

	rec := httptest.NewRecorder()
	NewServer(newStore(t), &fakeAsker{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
