package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/nhle/taskhub/internal/credential"
)

func TestMemoryDeliversCurrentValueAndUpdates(t *testing.T) {
	m := NewMemory()
	_ = m.Publish("taskComments", []string{"a"})

	var got []int
	sub, err := m.Subscribe(context.Background(), "taskComments", func(s Snapshot) {
		var v []string
		_ = s.Decode(&v)
		got = append(got, len(v))
	})
	if err != nil {
		t.Fatal(err)
	}

	_ = m.Publish("taskComments", []string{"a", "b"})
	sub.Close()
	_ = m.Publish("taskComments", []string{"a", "b", "c"})

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected deliveries [1 2], got %v", got)
	}
	if m.Subscribers("taskComments") != 0 {
		t.Error("closed subscription should be removed")
	}
}

func TestMemoryNullSnapshot(t *testing.T) {
	m := NewMemory()
	var snaps []Snapshot
	_, _ = m.Subscribe(context.Background(), "p", func(s Snapshot) { snaps = append(snaps, s) })
	_ = m.Publish("p", nil)
	if len(snaps) != 1 || snaps[0].Exists {
		t.Errorf("expected one absent snapshot, got %+v", snaps)
	}
}

func TestMemoryCloseInsideHandler(t *testing.T) {
	m := NewMemory()
	var sub Subscription
	calls := 0
	sub, _ = m.Subscribe(context.Background(), "p", func(Snapshot) {
		calls++
		sub.Close()
	})
	_ = m.Publish("p", 1)
	_ = m.Publish("p", 2)
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

// pushServer is a minimal push server: it answers every subscribe with the
// value stored for the path and records unsubscribes.
type pushServer struct {
	mu      sync.Mutex
	values  map[string]any
	unsubs  []string
	auth    string
	conns   []*websocket.Conn
	writeMu sync.Mutex
}

func (p *pushServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p.mu.Lock()
	p.auth = r.Header.Get("Authorization")
	p.conns = append(p.conns, conn)
	p.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if json.Unmarshal(data, &f) != nil {
			continue
		}
		switch f.Op {
		case opSubscribe:
			p.mu.Lock()
			v := p.values[f.Path]
			p.mu.Unlock()
			raw, _ := json.Marshal(v)
			p.send(conn, frame{Op: opSnapshot, ID: f.ID, Path: f.Path, Data: raw})
		case opUnsubscribe:
			p.mu.Lock()
			p.unsubs = append(p.unsubs, f.ID)
			p.mu.Unlock()
		}
	}
}

func (p *pushServer) send(conn *websocket.Conn, f frame) {
	data, _ := json.Marshal(f)
	p.writeMu.Lock()
	_ = conn.WriteMessage(websocket.TextMessage, data)
	p.writeMu.Unlock()
}

func TestWSChannelSubscribeReceivesSnapshot(t *testing.T) {
	ps := &pushServer{values: map[string]any{
		"userNotificationCounts/u1": map[string]int{"unread": 3},
	}}
	srv := httptest.NewServer(ps)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ch, err := DialWS(context.Background(), url, credential.NewMemoryStore("tok"))
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}
	defer ch.Close()

	got := make(chan int, 1)
	sub, err := ch.Subscribe(context.Background(), UserNotificationCountsPath("u1"), func(s Snapshot) {
		var c struct {
			Unread int `json:"unread"`
		}
		_ = s.Decode(&c)
		got <- c.Unread
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case n := <-got:
		if n != 3 {
			t.Errorf("expected unread 3, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}

	ps.mu.Lock()
	auth := ps.auth
	ps.mu.Unlock()
	if auth != "Bearer tok" {
		t.Errorf("expected bearer token on dial, got %q", auth)
	}

	sub.Close()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ps.mu.Lock()
		n := len(ps.unsubs)
		ps.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("expected unsubscribe frame after Close")
}

func TestWSChannelUnsubscribeDoesNotWaitForWriter(t *testing.T) {
	srv := httptest.NewServer(&pushServer{values: map[string]any{}})
	defer srv.Close()

	ch, err := DialWS(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()

	sub, err := ch.Subscribe(context.Background(), "taskComments", func(Snapshot) {})
	if err != nil {
		t.Fatal(err)
	}

	// A writer stuck on the connection holds writeMu.
	ch.writeMu.Lock()
	done := make(chan struct{})
	go func() {
		sub.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Close blocked behind a stalled write")
	}
	ch.writeMu.Unlock()
	<-done

	ch.mu.Lock()
	n := len(ch.subs)
	ch.mu.Unlock()
	if n != 0 {
		t.Errorf("expected no subscriptions, got %d", n)
	}
}

func TestWSChannelSubscribeAfterClose(t *testing.T) {
	srv := httptest.NewServer(&pushServer{values: map[string]any{}})
	defer srv.Close()

	ch, err := DialWS(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = ch.Close()

	if _, err := ch.Subscribe(context.Background(), "taskComments", func(Snapshot) {}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
