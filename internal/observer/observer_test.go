package observer

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestHubSessionIDIsStamped(t *testing.T) {
	h := NewHub()
	if h.SessionID() == "" {
		t.Fatalf("expected a non-empty boot session id")
	}
}

func TestHubMirrorsFrameToConnectedClient(t *testing.T) {
	h := NewHub()
	server := httptest.NewServer(h.HandleWS())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Give HandleWS's registration goroutine a moment to add the client
	// before the first mirrored frame is broadcast.
	time.Sleep(50 * time.Millisecond)
	h.Mirror([]byte("{\"p\":5}\n"))

	readCtx, readCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer readCancel()
	_, body, err := conn.Read(readCtx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "\"frame\":\"{\\\"p\\\":5}\\n\"") {
		t.Fatalf("expected the envelope to carry the mirrored frame, got %s", body)
	}
	if !strings.Contains(string(body), h.SessionID()) {
		t.Fatalf("expected the envelope to carry the boot session id, got %s", body)
	}
}

func TestHubMirrorWithNoClientsIsANoOp(t *testing.T) {
	h := NewHub()
	h.Mirror([]byte("{\"p\":4}\n"))
}
