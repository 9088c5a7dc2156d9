package deepl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bridgit-ai/bridgit/pkg/provider/translate"
)

func TestTargetCode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"en", "EN-US"},
		{"EN", "EN-US"},
		{"pt", "PT-PT"},
		{"zh", "ZH-CN"},
		{"es", "ES"},
		{"de", "DE"},
	}
	for _, tc := range tests {
		if got := targetCode(tc.in); got != tc.want {
			t.Errorf("targetCode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") succeeded, want error")
	}
}

func TestTranslate(t *testing.T) {
	var gotAuth, gotText, gotTarget, gotSource string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotText = r.PostForm.Get("text")
		gotTarget = r.PostForm.Get("target_lang")
		gotSource = r.PostForm.Get("source_lang")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"translations":[{"detected_source_language":"ES","text":"hello world"}]}`))
	}))
	defer srv.Close()

	p, err := New("key-123", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Translate(context.Background(), translate.Request{
		Text:   "hola mundo",
		Source: "es",
		Target: "en",
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Text != "hello world" {
		t.Errorf("text = %q", res.Text)
	}
	if res.DetectedSource != "ES" {
		t.Errorf("detected source = %q", res.DetectedSource)
	}
	if gotAuth != "DeepL-Auth-Key key-123" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotText != "hola mundo" || gotTarget != "EN-US" || gotSource != "ES" {
		t.Errorf("form = text %q target %q source %q", gotText, gotTarget, gotSource)
	}
}

func TestTranslateNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := New("key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.Translate(context.Background(), translate.Request{Text: "hola", Target: "en"})
	if err == nil {
		t.Fatal("Translate succeeded on 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error %q does not name the status", err)
	}
}

func TestTranslateValidation(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Translate(context.Background(), translate.Request{Target: "en"}); err == nil {
		t.Error("empty text accepted")
	}
	if _, err := p.Translate(context.Background(), translate.Request{Text: "hola"}); err == nil {
		t.Error("missing target accepted")
	}
}
