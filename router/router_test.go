package router

import (
	"context"
	"testing"

	"github.com/searchktools/corehttp/httpcore"
)

func okHandler(body string) Handler {
	return HandlerFunc(func(ctx context.Context, req *httpcore.Request) (*httpcore.Response, error) {
		return httpcore.NewBytesResponse(200, []byte(body)), nil
	})
}

func request(method httpcore.Method, path string) *httpcore.Request {
	return &httpcore.Request{Method: method, Path: path, Headers: httpcore.Header{}}
}

func TestLiteralMatch(t *testing.T) {
	r := New()
	if err := r.Register([]httpcore.Method{httpcore.GET}, "/users", okHandler("list")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	h, _, ok := r.Match(request(httpcore.GET, "/users"))
	if !ok {
		t.Fatal("expected a match")
	}
	resp, _ := h.HandleRequest(context.Background(), nil)
	if resp.Status != 200 {
		t.Errorf("status = %d, want 200", resp.Status)
	}
}

func TestParamBinding(t *testing.T) {
	r := New()
	r.Register(nil, "/users/:id", okHandler("user"))

	_, params, ok := r.Match(request(httpcore.GET, "/users/42"))
	if !ok {
		t.Fatal("expected a match")
	}
	if params.Get("id") != "42" {
		t.Errorf("id param = %q, want 42", params.Get("id"))
	}
}

func TestWildcardConsumesRest(t *testing.T) {
	r := New()
	r.Register(nil, "/static/*rest", okHandler("file"))

	_, params, ok := r.Match(request(httpcore.GET, "/static/css/app.css"))
	if !ok {
		t.Fatal("expected a match")
	}
	if params.Get("rest") != "css/app.css" {
		t.Errorf("rest param = %q, want css/app.css", params.Get("rest"))
	}
}

// TestRoutePrecedence is §8 scenario 6: a wildcard registered before a
// more specific literal wins, because matching is first-match-wins over
// registration order, not longest-match.
func TestRoutePrecedence(t *testing.T) {
	r := New()
	r.Register(nil, "/a/*", okHandler("wildcard"))
	r.Register(nil, "/a/b", okHandler("literal"))

	h, _, ok := r.Match(request(httpcore.GET, "/a/b"))
	if !ok {
		t.Fatal("expected a match")
	}
	resp, _ := h.HandleRequest(context.Background(), nil)
	if string(mustBytes(resp)) != "wildcard" {
		t.Errorf("expected the earlier-registered wildcard route to win")
	}
}

func TestMethodFiltering(t *testing.T) {
	r := New()
	r.Register([]httpcore.Method{httpcore.POST}, "/items", okHandler("create"))

	if _, _, ok := r.Match(request(httpcore.GET, "/items")); ok {
		t.Error("GET should not match a POST-only route")
	}
	if _, _, ok := r.Match(request(httpcore.POST, "/items")); !ok {
		t.Error("POST should match")
	}
}

func TestHeaderPredicate(t *testing.T) {
	r := New()
	r.Register(nil, "/api", okHandler("json"), WithHeader("Accept", "application/json"))

	req := request(httpcore.GET, "/api")
	if _, _, ok := r.Match(req); ok {
		t.Error("expected no match without the header")
	}

	req.Headers.Set("Accept", "application/json")
	if _, _, ok := r.Match(req); !ok {
		t.Error("expected a match once the header predicate is satisfied")
	}
}

func TestTrailingSlashExactLength(t *testing.T) {
	r := New()
	r.Register(nil, "/exact/", okHandler("exact"))

	if _, _, ok := r.Match(request(httpcore.GET, "/exact/extra")); ok {
		t.Error("trailing slash pattern should reject extra segments")
	}
	if _, _, ok := r.Match(request(httpcore.GET, "/exact")); !ok {
		t.Error("expected exact segment-count match")
	}
}

func mustBytes(resp *httpcore.Response) []byte {
	buf := &collectSink{}
	w := httpcore.NewWriter(buf, 0)
	w.WriteResponse(context.Background(), resp)
	return buf.body()
}

type collectSink struct{ data []byte }

func (s *collectSink) Write(ctx context.Context, p []byte) error {
	s.data = append(s.data, p...)
	return nil
}

func (s *collectSink) body() []byte {
	idx := -1
	for i := 0; i+3 < len(s.data); i++ {
		if s.data[i] == '\r' && s.data[i+1] == '\n' && s.data[i+2] == '\r' && s.data[i+3] == '\n' {
			idx = i + 4
			break
		}
	}
	if idx < 0 {
		return nil
	}
	return s.data[idx:]
}
