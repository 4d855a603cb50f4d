package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// RawQuery はクエリ文字列。
	RawQuery string
	// Body はリクエストボディ。
	Body []byte
	// Headers はリクエストヘッダー。
	Headers http.Header
}

// newRecordingServer は受け取ったリクエストを記録するテストサーバーを起動する。
func newRecordingServer(t *testing.T, status int, respBody string) (*httptest.Server, <-chan testRequest) {
	t.Helper()

	received := make(chan testRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- testRequest{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Body:     body,
			Headers:  r.Header.Clone(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, received
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client, err := New("http://localhost:4001/")
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if got := client.BaseURL(); got != "http://localhost:4001" {
			t.Errorf("BaseURL() = %q, want %q", got, "http://localhost:4001")
		}
		if client.httpClient.Timeout != DefaultTimeout {
			t.Errorf("Timeout = %v, want %v", client.httpClient.Timeout, DefaultTimeout)
		}
	})

	t.Run("WithTimeoutでタイムアウトを変更できること", func(t *testing.T) {
		t.Parallel()

		client, err := New("http://localhost:4001", WithTimeout(5*time.Second))
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if client.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", client.httpClient.Timeout)
		}
	})

	tests := []struct {
		name    string
		baseURL string
	}{
		{name: "スキームが無い場合エラーになること", baseURL: "localhost:4001"},
		{name: "サポートしないスキームの場合エラーになること", baseURL: "ftp://files.example.com"},
		{name: "ホストが無い場合エラーになること", baseURL: "http://"},
		{name: "パースできないURLの場合エラーになること", baseURL: "http://[::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := New(tt.baseURL); err == nil {
				t.Errorf("New(%q)がエラーを返さなかった", tt.baseURL)
			}
		})
	}
}

// TestForward はForwardメソッドを検証する。
func TestForward(t *testing.T) {
	t.Parallel()

	t.Run("メソッド・パス・クエリ・ボディがそのまま転送されること", func(t *testing.T) {
		t.Parallel()

		srv, received := newRecordingServer(t, http.StatusCreated, `{"id":"c-1"}`)
		client, err := New(srv.URL)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		in := httptest.NewRequest(http.MethodPost, "/api/courses/42/lessons?draft=true", strings.NewReader(`{"title":"Fractions"}`))
		in.Header.Set("Content-Type", "application/json")
		in.Header.Set("Authorization", "Bearer token")

		resp, err := client.Forward(context.Background(), in)
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		defer resp.Body.Close()

		got := <-received
		if got.Method != http.MethodPost {
			t.Errorf("Method = %q, want %q", got.Method, http.MethodPost)
		}
		if got.Path != "/api/courses/42/lessons" {
			t.Errorf("Path = %q, want %q", got.Path, "/api/courses/42/lessons")
		}
		if got.RawQuery != "draft=true" {
			t.Errorf("RawQuery = %q, want %q", got.RawQuery, "draft=true")
		}
		if string(got.Body) != `{"title":"Fractions"}` {
			t.Errorf("Body = %q", got.Body)
		}
		if got.Headers.Get("Authorization") != "Bearer token" {
			t.Errorf("Authorization = %q, want %q", got.Headers.Get("Authorization"), "Bearer token")
		}
		if resp.StatusCode != http.StatusCreated {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != `{"id":"c-1"}` {
			t.Errorf("レスポンスボディ = %q", body)
		}
	})

	t.Run("ベースURLのパスが前置されること", func(t *testing.T) {
		t.Parallel()

		srv, received := newRecordingServer(t, http.StatusOK, `{}`)
		client, err := New(srv.URL + "/v2")
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		resp, err := client.Forward(context.Background(), httptest.NewRequest(http.MethodGet, "/api/ai/hint", nil))
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if got := (<-received).Path; got != "/v2/api/ai/hint" {
			t.Errorf("Path = %q, want %q", got, "/v2/api/ai/hint")
		}
	})

	t.Run("ホップバイホップヘッダーが除去されX-Forwardedヘッダーが付与されること", func(t *testing.T) {
		t.Parallel()

		srv, received := newRecordingServer(t, http.StatusOK, `{}`)
		client, err := New(srv.URL)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		in := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
		in.RemoteAddr = "198.51.100.7:54321"
		in.Host = "gateway.example.com"
		in.Header.Set("Connection", "X-Client-Hop")
		in.Header.Set("X-Client-Hop", "1")
		in.Header.Set("Proxy-Authorization", "Basic abc")
		in.Header.Set("X-Forwarded-For", "203.0.113.1")

		resp, err := client.Forward(context.Background(), in)
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		got := <-received
		if v := got.Headers.Get("X-Client-Hop"); v != "" {
			t.Errorf("X-Client-Hop = %q, want empty", v)
		}
		if v := got.Headers.Get("Proxy-Authorization"); v != "" {
			t.Errorf("Proxy-Authorization = %q, want empty", v)
		}
		if v := got.Headers.Get("X-Forwarded-For"); v != "203.0.113.1, 198.51.100.7" {
			t.Errorf("X-Forwarded-For = %q, want %q", v, "203.0.113.1, 198.51.100.7")
		}
		if v := got.Headers.Get("X-Forwarded-Host"); v != "gateway.example.com" {
			t.Errorf("X-Forwarded-Host = %q, want %q", v, "gateway.example.com")
		}
		if v := got.Headers.Get("X-Forwarded-Proto"); v != "http" {
			t.Errorf("X-Forwarded-Proto = %q, want %q", v, "http")
		}
	})

	t.Run("リダイレクトは追跡せずにそのまま返すこと", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
		}))
		t.Cleanup(srv.Close)

		client, err := New(srv.URL)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		resp, err := client.Forward(context.Background(), httptest.NewRequest(http.MethodGet, "/api/school", nil))
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusFound {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusFound)
		}
		if got := resp.Header.Get("Location"); got != "/elsewhere" {
			t.Errorf("Location = %q, want %q", got, "/elsewhere")
		}
	})

	t.Run("内部サービスのエラーステータスはエラーにせずそのまま返すこと", func(t *testing.T) {
		t.Parallel()

		srv, _ := newRecordingServer(t, http.StatusInternalServerError, `{"error":"db down"}`)
		client, err := New(srv.URL)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		resp, err := client.Forward(context.Background(), httptest.NewRequest(http.MethodGet, "/api/analytics", nil))
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
		}
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client, err := New("http://127.0.0.1:1", WithTimeout(time.Second))
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if _, err := client.Forward(context.Background(), httptest.NewRequest(http.MethodGet, "/api/teacher", nil)); err == nil {
			t.Error("Forward()がエラーを返さなかった")
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		srv, _ := newRecordingServer(t, http.StatusOK, `{}`)
		client, err := New(srv.URL)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := client.Forward(ctx, httptest.NewRequest(http.MethodGet, "/api/courses", nil)); err == nil {
			t.Error("Forward()がエラーを返さなかった")
		}
	})
}

// TestWithUserID はユーザーIDとリクエストIDの伝播を検証する。
func TestWithUserID(t *testing.T) {
	t.Parallel()

	t.Run("コンテキストのユーザーIDとリクエストIDが伝播されること", func(t *testing.T) {
		t.Parallel()

		srv, received := newRecordingServer(t, http.StatusOK, `{}`)
		client, err := New(srv.URL)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		ctx := WithRequestID(WithUserID(context.Background(), "teacher-9"), "req-123")
		resp, err := client.Forward(ctx, httptest.NewRequest(http.MethodGet, "/api/teacher/classes", nil))
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		got := <-received
		if v := got.Headers.Get("X-User-ID"); v != "teacher-9" {
			t.Errorf("X-User-ID = %q, want %q", v, "teacher-9")
		}
		if v := got.Headers.Get("X-Request-ID"); v != "req-123" {
			t.Errorf("X-Request-ID = %q, want %q", v, "req-123")
		}
	})

	t.Run("クライアントが送ったX-User-IDは転送されないこと", func(t *testing.T) {
		t.Parallel()

		srv, received := newRecordingServer(t, http.StatusOK, `{}`)
		client, err := New(srv.URL)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		in := httptest.NewRequest(http.MethodGet, "/api/school", nil)
		in.Header.Set("X-User-ID", "spoofed-admin")
		resp, err := client.Forward(context.Background(), in)
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if v := (<-received).Headers.Get("X-User-ID"); v != "" {
			t.Errorf("X-User-ID = %q, want empty", v)
		}
	})
}

// TestRemoveHopHeaders はホップバイホップヘッダーの除去を検証する。
func TestRemoveHopHeaders(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("Connection", "X-Internal-Hop, Keep-Alive")
	h.Set("Keep-Alive", "timeout=5")
	h.Set("X-Internal-Hop", "secret")
	h.Set("Transfer-Encoding", "chunked")
	h.Set("Content-Type", "application/json")

	removeHopHeaders(h)

	for _, name := range []string{"Connection", "Keep-Alive", "X-Internal-Hop", "Transfer-Encoding"} {
		if v := h.Get(name); v != "" {
			t.Errorf("%s = %q, want empty", name, v)
		}
	}
	if v := h.Get("Content-Type"); v != "application/json" {
		t.Errorf("Content-Type = %q, want %q", v, "application/json")
	}
}
