package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

type idempFixture struct {
	e     *echo.Echo
	rdb   *redis.Client
	calls int
}

func newIdempFixture(t *testing.T) *idempFixture {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &idempFixture{e: echo.New(), rdb: rdb}
	handler := func(c echo.Context) error {
		f.calls++
		return c.JSON(http.StatusCreated, map[string]any{"call": f.calls})
	}
	mw := IdempotencyMiddleware(rdb, time.Minute)
	f.e.POST("/api/loans", handler, mw)
	f.e.GET("/api/loans", handler, mw)
	return f
}

func goodHeaders(req *http.Request) {
	req.Header.Set("X-Request-Id", "0123456789abcdef0123456789abcdef")
	req.Header.Set("X-Request-At", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("X-Account-Id", "GBORROWER00000000000000000000001")
}

func (f *idempFixture) post(body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/loans", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	goodHeaders(req)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	f := newIdempFixture(t)

	first := f.post(`{"amount":"1"}`, nil)
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d body %s", first.Code, first.Body)
	}

	second := f.post(`{"amount":"1"}`, nil)
	if second.Code != http.StatusCreated {
		t.Fatalf("replay status = %d body %s", second.Code, second.Body)
	}
	if f.calls != 1 {
		t.Fatalf("handler ran %d times, want 1", f.calls)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replay body %q differs from original %q", second.Body, first.Body)
	}
}

func TestIdempotency_RejectsReusedIDWithDifferentBody(t *testing.T) {
	f := newIdempFixture(t)

	if rec := f.post(`{"amount":"1"}`, nil); rec.Code != http.StatusCreated {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := f.post(`{"amount":"2"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 for a reused id", rec.Code)
	}
	if f.calls != 1 {
		t.Fatalf("handler ran %d times", f.calls)
	}
}

func TestIdempotency_InProgressConflicts(t *testing.T) {
	f := newIdempFixture(t)

	// another instance holds the provisional lock for the same request
	key := buildKey(http.MethodPost, "/api/loans", "GBORROWER00000000000000000000001", "0123456789abcdef0123456789abcdef")
	ok, err := provisionalSet(context.Background(), f.rdb, key, idempEntry{
		InProgress: true,
		BodySHA256: bodyHash([]byte(`{"amount":"1"}`)),
	})
	if err != nil || !ok {
		t.Fatalf("seed provisional lock: ok=%v err=%v", ok, err)
	}

	rec := f.post(`{"amount":"1"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 while in progress", rec.Code)
	}
	if f.calls != 0 {
		t.Fatal("handler ran under a held lock")
	}
}

func TestIdempotency_HeaderValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*http.Request)
	}{
		{"missing request id", func(r *http.Request) { r.Header.Del("X-Request-Id") }},
		{"malformed request id", func(r *http.Request) { r.Header.Set("X-Request-Id", "not-an-id") }},
		{"missing request at", func(r *http.Request) { r.Header.Del("X-Request-At") }},
		{"naive request at", func(r *http.Request) { r.Header.Set("X-Request-At", "2026-03-01T10:00:00") }},
		{"skewed request at", func(r *http.Request) {
			r.Header.Set("X-Request-At", strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10))
		}},
		{"missing account", func(r *http.Request) { r.Header.Del("X-Account-Id") }},
		{"malformed account", func(r *http.Request) { r.Header.Set("X-Account-Id", "no spaces allowed") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newIdempFixture(t)
			rec := f.post(`{"amount":"1"}`, tc.mutate)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d body %s, want 400", rec.Code, rec.Body)
			}
			if f.calls != 0 {
				t.Fatal("handler ran despite invalid headers")
			}
		})
	}
}

func TestIdempotency_ReadsBypass(t *testing.T) {
	f := newIdempFixture(t)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/loans", nil)
		rec := httptest.NewRecorder()
		f.e.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("GET #%d status = %d", i, rec.Code)
		}
	}
	if f.calls != 2 {
		t.Fatalf("handler ran %d times, want every GET", f.calls)
	}
}

func TestIdempotency_DistinctAccountsDoNotCollide(t *testing.T) {
	f := newIdempFixture(t)

	if rec := f.post(`{"amount":"1"}`, nil); rec.Code != http.StatusCreated {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := f.post(`{"amount":"1"}`, func(r *http.Request) {
		r.Header.Set("X-Account-Id", "GSOMEBODYELSE0000000000000000002")
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want fresh execution for another account", rec.Code)
	}
	if f.calls != 2 {
		t.Fatalf("handler ran %d times, want 2", f.calls)
	}
}
