package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// relayHandler accepts one websocket connection, collects everything the
// client publishes, and optionally writes scripted envelopes back.
func relayHandler(t *testing.T, outbound []envelope, received chan<- envelope) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		for _, env := range outbound {
			payload, err := json.Marshal(env)
			if err != nil {
				t.Errorf("marshal: %v", err)
				return
			}
			if err := conn.Write(r.Context(), websocket.MessageText, payload); err != nil {
				return
			}
		}

		for {
			_, payload, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			var env envelope
			if err := json.Unmarshal(payload, &env); err != nil {
				continue
			}
			select {
			case received <- env:
			default:
			}
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientPublish(t *testing.T) {
	received := make(chan envelope, 1)
	srv := httptest.NewServer(relayHandler(t, nil, received))
	defer srv.Close()

	client, err := Dial(context.Background(), wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	msg := NewTranslationMessage("hola", "hello", "es", "en", "speaker-1")
	if err := client.Publish(context.Background(), "bridgit_123456", msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case env := <-received:
		if env.Channel != "bridgit_123456" {
			t.Errorf("channel = %q", env.Channel)
		}
		if env.Message.TranslatedText != "hello" {
			t.Errorf("translated = %q", env.Message.TranslatedText)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the publication")
	}
}

func TestClientListenFiltersByChannel(t *testing.T) {
	outbound := []envelope{
		{Channel: "bridgit_999999", Message: NewTranslationMessage("x", "y", "es", "en", "other")},
		{Channel: "bridgit_123456", Message: NewTranslationMessage("hola", "hello", "es", "en", "peer")},
	}
	srv := httptest.NewServer(relayHandler(t, outbound, make(chan envelope, 1)))
	defer srv.Close()

	client, err := Dial(context.Background(), wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, _ := client.Listen(ctx, "bridgit_123456")

	select {
	case got := <-msgs:
		if got.TranslatedText != "hello" || got.ParticipantID != "peer" {
			t.Errorf("message = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}

	// The other channel's message must not leak through.
	select {
	case got, ok := <-msgs:
		if ok {
			t.Errorf("unexpected extra message: %+v", got)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClientPublishAfterClose(t *testing.T) {
	srv := httptest.NewServer(relayHandler(t, nil, make(chan envelope, 1)))
	defer srv.Close()

	client, err := Dial(context.Background(), wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Publish(context.Background(), "bridgit_123456", Message{}); err == nil {
		t.Error("Publish after Close succeeded, want error")
	}
}
