package main

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/wolfman30/mortgage-ai-platform/internal/chatwoot"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

func request(method, path string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: path,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method: method,
				Path:   path,
			},
		},
	}
}

func testConfig(baseURL string) config {
	return config{upstreamBaseURL: baseURL, upstreamTimeout: time.Second, logger: logging.Discard()}
}

func TestHandleHealth(t *testing.T) {
	resp, err := handle(context.Background(), testConfig("http://example.com"), http.DefaultClient, request(http.MethodGet, "/health"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.Body != "ok" {
		t.Fatalf("expected ok body, got %q", resp.Body)
	}
}

func TestHandleRejectsNonPost(t *testing.T) {
	resp, err := handle(context.Background(), testConfig("http://example.com"), http.DefaultClient, request(http.MethodGet, webhookPath))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, resp.StatusCode)
	}
}

func TestHandleRejectsUnknownPath(t *testing.T) {
	resp, err := handle(context.Background(), testConfig("http://example.com"), http.DefaultClient, request(http.MethodPost, "/webhooks/other"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestHandleForwardsWebhook(t *testing.T) {
	payload := `{"event":"message_created","content":"hi"}`
	var gotBody, gotSig, gotTS, gotCT string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != webhookPath {
			t.Errorf("unexpected upstream path %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotSig = r.Header.Get(chatwoot.SignatureHeader)
		gotTS = r.Header.Get(chatwoot.TimestampHeader)
		gotCT = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	}))
	defer upstream.Close()

	evt := request(http.MethodPost, webhookPath)
	evt.IsBase64Encoded = true
	evt.Body = base64.StdEncoding.EncodeToString([]byte(payload))
	evt.Headers = map[string]string{
		"x-chatwoot-signature": "abc123",
		"x-chatwoot-timestamp": "1700000000",
	}

	resp, err := handle(context.Background(), testConfig(upstream.URL+"/"), upstream.Client(), evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, resp.StatusCode)
	}
	if resp.Body != `{"status":"queued"}` {
		t.Fatalf("unexpected body %q", resp.Body)
	}
	if resp.Headers["content-type"] != "application/json" {
		t.Fatalf("expected content-type relayed, got %q", resp.Headers["content-type"])
	}
	if gotBody != payload {
		t.Fatalf("expected decoded payload upstream, got %q", gotBody)
	}
	if gotSig != "abc123" || gotTS != "1700000000" {
		t.Fatalf("signature headers not forwarded: sig=%q ts=%q", gotSig, gotTS)
	}
	if gotCT != "application/json" {
		t.Fatalf("expected json content type, got %q", gotCT)
	}
}

func TestHandleVerifiesSignatureAtEdge(t *testing.T) {
	calls := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	cfg := testConfig(upstream.URL)
	cfg.verifier = chatwoot.NewSignatureVerifier("edge-secret", time.Minute)

	payload := []byte(`{"event":"message_created"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	forged := request(http.MethodPost, webhookPath)
	forged.Body = string(payload)
	forged.Headers = map[string]string{
		chatwoot.SignatureHeader: "deadbeef",
		chatwoot.TimestampHeader: ts,
	}
	resp, err := handle(context.Background(), cfg, upstream.Client(), forged)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.StatusCode)
	}
	if calls != 0 {
		t.Fatalf("forged webhook reached upstream")
	}

	signed := forged
	signed.Headers = map[string]string{
		chatwoot.SignatureHeader: chatwoot.Sign("edge-secret", ts, payload),
		chatwoot.TimestampHeader: ts,
	}
	resp, err = handle(context.Background(), cfg, upstream.Client(), signed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK || calls != 1 {
		t.Fatalf("expected signed webhook forwarded, status=%d calls=%d", resp.StatusCode, calls)
	}
}

func TestHandleRejectsOversizedBody(t *testing.T) {
	evt := request(http.MethodPost, webhookPath)
	evt.Body = string(make([]byte, maxBodyBytes+1))

	resp, err := handle(context.Background(), testConfig("http://example.com"), http.DefaultClient, evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.StatusCode)
	}
}

func TestHandleUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := upstream.URL
	upstream.Close()

	evt := request(http.MethodPost, webhookPath)
	evt.Body = `{}`

	resp, err := handle(context.Background(), testConfig(baseURL), &http.Client{Timeout: time.Second}, evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, resp.StatusCode)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "")
	if _, err := loadConfig(); err == nil {
		t.Fatalf("expected error without upstream")
	}

	t.Setenv("UPSTREAM_BASE_URL", "https://api.example.com/")
	t.Setenv("UPSTREAM_TIMEOUT", "2s")
	t.Setenv("CHATWOOT_WEBHOOK_SECRET", "s")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.upstreamBaseURL != "https://api.example.com" || cfg.upstreamTimeout != 2*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !cfg.verifier.Enabled() {
		t.Fatalf("expected edge verifier")
	}

	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	if _, err := loadConfig(); err == nil {
		t.Fatalf("expected invalid timeout error")
	}
}
