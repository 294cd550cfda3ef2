package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/wikiclaim/internal/wikibase"
)

func testEntity() *wikibase.Entity {
	e := wikibase.NewEntity()
	e.SetLabel("en", "Acme Coffee Roasters Inc.")
	e.SetDescription("en", "Local business in San Francisco, CA")
	claim := wikibase.NewClaim(wikibase.ValueSnak("P31", wikibase.DataTypeItem, wikibase.ItemID("Q4830453")))
	var ref wikibase.Reference
	ref.Add(wikibase.ValueSnak("P854", wikibase.DataTypeURL, wikibase.String("https://acmecoffee.com")))
	claim.References = []wikibase.Reference{ref}
	e.AddClaim(claim)
	return e
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIURL:  serverURL + "/w/api.php",
		Timeout: 5 * time.Second,
		Summary: "test summary",
		Bot:     true,
		MaxLag:  5,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "ftp://example.org/w/api.php"} {
		if _, err := NewClient(Options{APIURL: u}); err == nil {
			t.Errorf("Expected error for %q", u)
		}
	}
}

func TestClient_LoginAndToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/w/api.php" {
			t.Errorf("Expected path /w/api.php, got %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "wikiclaim/") {
			t.Errorf("Expected wikiclaim user agent, got %s", r.Header.Get("User-Agent"))
		}
		_ = r.ParseForm()

		switch {
		case r.Form.Get("action") == "query" && r.Form.Get("type") == "login":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1", Path: "/"})
			writeJSON(w, map[string]interface{}{
				"query": map[string]interface{}{"tokens": map[string]string{"logintoken": "lt+\\"}},
			})
		case r.Form.Get("action") == "login":
			if r.Method != http.MethodPost {
				t.Errorf("Expected POST for login, got %s", r.Method)
			}
			if c, err := r.Cookie("session"); err != nil || c.Value != "s1" {
				t.Error("Expected session cookie on login")
			}
			if r.Form.Get("lgtoken") != "lt+\\" || r.Form.Get("lgname") != "Bot@wikiclaim" || r.Form.Get("lgpassword") != "secret" {
				t.Errorf("Unexpected login form %v", r.Form)
			}
			writeJSON(w, map[string]interface{}{
				"login": map[string]string{"result": "Success", "lgusername": "Bot"},
			})
		case r.Form.Get("action") == "query":
			if _, err := r.Cookie("session"); err != nil {
				t.Error("Expected session cookie on token fetch")
			}
			writeJSON(w, map[string]interface{}{
				"query": map[string]interface{}{"tokens": map[string]string{"csrftoken": "csrf123+\\"}},
			})
		default:
			t.Errorf("Unexpected request %v", r.Form)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	if err := client.Login(context.Background(), "Bot@wikiclaim", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if client.User() != "Bot" {
		t.Errorf("Expected user Bot, got %q", client.User())
	}

	token, err := client.FetchCSRFToken(context.Background())
	if err != nil {
		t.Fatalf("FetchCSRFToken: %v", err)
	}
	if token != "csrf123+\\" {
		t.Errorf("Unexpected token %q", token)
	}
}

func TestClient_LoginFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("action") == "query" {
			writeJSON(w, map[string]interface{}{
				"query": map[string]interface{}{"tokens": map[string]string{"logintoken": "lt"}},
			})
			return
		}
		writeJSON(w, map[string]interface{}{
			"login": map[string]string{"result": "Failed", "reason": "Incorrect username or password entered."},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.Login(context.Background(), "Bot@wikiclaim", "wrong")

	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if pe.Kind != KindFatal || pe.Code != "login-failed" {
		t.Errorf("Unexpected error %+v", pe)
	}
	if !strings.Contains(pe.Info, "Incorrect username") {
		t.Errorf("Expected reason in info, got %q", pe.Info)
	}
	if client.User() != "" {
		t.Error("Expected no user after failed login")
	}

	if err := client.Login(context.Background(), "", ""); !IsFatal(err) {
		t.Errorf("Expected fatal error for missing credentials, got %v", err)
	}
}

func TestClient_Publish_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Unexpected content type %s", ct)
		}
		_ = r.ParseForm()

		want := map[string]string{
			"action":  "wbeditentity",
			"new":     "item",
			"token":   "csrf123+\\",
			"format":  "json",
			"bot":     "1",
			"summary": "test summary",
			"maxlag":  "5",
		}
		for k, v := range want {
			if got := r.PostForm.Get(k); got != v {
				t.Errorf("Expected %s=%q, got %q", k, v, got)
			}
		}

		var data map[string]json.RawMessage
		if err := json.Unmarshal([]byte(r.PostForm.Get("data")), &data); err != nil {
			t.Errorf("data is not JSON: %v", err)
			return
		}
		if _, ok := data["id"]; ok {
			t.Error("New item data must not carry an id")
		}
		for _, k := range []string{"labels", "descriptions", "claims"} {
			if _, ok := data[k]; !ok {
				t.Errorf("Expected %s in data", k)
			}
		}

		_, _ = w.Write([]byte(`{"entity":{"id":"Q240001","type":"item","lastrevid":667,"labels":{"en":{"language":"en","value":"Acme Coffee Roasters Inc."}},"claims":{}},"success":1}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	entity := testEntity()
	entity.ID = "Q1"

	result, err := client.Publish(context.Background(), entity, "csrf123+\\")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.QID != "Q240001" || result.LastRevID != 667 {
		t.Errorf("Unexpected result %+v", result)
	}
	if entity.ID != "Q1" {
		t.Error("Publish must not modify the caller's entity")
	}

	var decoded wikibase.Entity
	if err := json.Unmarshal(result.Entity, &decoded); err != nil {
		t.Fatalf("Returned entity does not decode: %v", err)
	}
	if decoded.Labels["en"].Value != "Acme Coffee Roasters Inc." {
		t.Errorf("Unexpected returned label %q", decoded.Labels["en"].Value)
	}
}

func TestClient_Publish_ErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		body       string
		kind       ErrorKind
		code       string
		wait       time.Duration
		messages   []string
	}{
		{
			name: "bad token",
			body: `{"error":{"code":"badtoken","info":"Invalid CSRF token."}}`,
			kind: KindToken,
			code: "badtoken",
		},
		{
			name:       "maxlag",
			retryAfter: "5",
			body:       `{"error":{"code":"maxlag","info":"Waiting for 10.64.48.23: 6 seconds lagged."}}`,
			kind:       KindTransient,
			code:       "maxlag",
			wait:       5 * time.Second,
		},
		{
			name: "rate limited",
			body: `{"error":{"code":"ratelimited","info":"You've exceeded your rate limit."}}`,
			kind: KindTransient,
			code: "ratelimited",
		},
		{
			name:     "modification failed",
			body:     `{"error":{"code":"modification-failed","info":"Malformed input","messages":[{"name":"wikibase-validator-bad-value","parameters":[],"html":{"*":"x"}}]}}`,
			kind:     KindFatal,
			code:     "modification-failed",
			messages: []string{"wikibase-validator-bad-value"},
		},
		{
			name: "no such entity type",
			body: `{"error":{"code":"no-such-entity-type","info":"No entity type"}}`,
			kind: KindFatal,
			code: "no-such-entity-type",
		},
		{
			name: "invalid snak",
			body: `{"error":{"code":"invalid-snak","info":"Invalid snak data."}}`,
			kind: KindFatal,
			code: "invalid-snak",
		},
		{
			name:   "service unavailable",
			status: http.StatusServiceUnavailable,
			body:   `upstream connect error`,
			kind:   KindTransient,
			code:   "http-503",
		},
		{
			name:       "too many requests",
			status:     http.StatusTooManyRequests,
			retryAfter: "30",
			body:       ``,
			kind:       KindTransient,
			code:       "http-429",
			wait:       30 * time.Second,
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			body:   `blocked`,
			kind:   KindFatal,
			code:   "http-403",
		},
		{
			name: "not json",
			body: `<html>oops</html>`,
			kind: KindFatal,
			code: "malformed-response",
		},
		{
			name: "no success flag",
			body: `{"entity":{"id":"Q5"}}`,
			kind: KindFatal,
			code: "malformed-response",
		},
		{
			name: "no item id",
			body: `{"entity":{"id":"P5"},"success":1}`,
			kind: KindFatal,
			code: "malformed-response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.Publish(context.Background(), testEntity(), "tok")

			var pe *Error
			if !errors.As(err, &pe) {
				t.Fatalf("Expected *Error, got %v", err)
			}
			if pe.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s (%v)", tt.kind, pe.Kind, err)
			}
			if pe.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, pe.Code)
			}
			if pe.RetryAfter != tt.wait {
				t.Errorf("Expected retry-after %v, got %v", tt.wait, pe.RetryAfter)
			}
			if len(tt.messages) > 0 {
				if len(pe.Messages) != len(tt.messages) || pe.Messages[0] != tt.messages[0] {
					t.Errorf("Expected messages %v, got %v", tt.messages, pe.Messages)
				}
			}
		})
	}
}

func TestClient_Publish_RejectsMissingInput(t *testing.T) {
	client, err := NewClient(Options{APIURL: "https://test.wikidata.org/w/api.php"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := client.Publish(context.Background(), nil, "tok"); !IsFatal(err) {
		t.Errorf("Expected fatal error for nil entity, got %v", err)
	}
	if _, err := client.Publish(context.Background(), testEntity(), ""); !IsTokenError(err) {
		t.Errorf("Expected token error for empty token, got %v", err)
	}
}

func TestClient_TransportErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	client := newTestClient(t, serverURL)
	_, err := client.Publish(context.Background(), testEntity(), "tok")
	if !IsRetryable(err) {
		t.Errorf("Expected connection refused to be retryable, got %v", err)
	}

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()

	client = newTestClient(t, slow.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Publish(ctx, testEntity(), "tok")
	if IsRetryable(err) || !IsFatal(err) {
		t.Errorf("Expected cancellation to be fatal, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected error to wrap context.Canceled, got %v", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Publish(ctx, testEntity(), "tok")
	if !IsRetryable(err) {
		t.Errorf("Expected timeout to be retryable, got %v", err)
	}
}

func TestClient_FetchCSRFToken_Missing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"query": map[string]interface{}{"tokens": map[string]string{}}})
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).FetchCSRFToken(context.Background())
	if !IsTokenError(err) {
		t.Errorf("Expected missing token to be a token error, got %v", err)
	}

	var pe *Error
	if !errors.As(err, &pe) || pe.Code != "notoken" {
		t.Fatalf("Expected notoken error, got %v", err)
	}
	if pe.Kind != classifyAPIErrorCode(pe.Code) {
		t.Errorf("Kind %s differs from API classification %s for the same code", pe.Kind, classifyAPIErrorCode(pe.Code))
	}
}
