package core

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/vovakirdan/chatrocket-server/internal/store"
)

func TestHubRegisterLookupUnregister(t *testing.T) {
	hub, _ := startHub(t)

	alice := NewClient("conn-a", "alice", "")
	hub.Register(alice)

	connID, ok := hub.Lookup("alice")
	if !ok || connID != "conn-a" {
		t.Fatalf("expected conn-a, got %q (ok=%v)", connID, ok)
	}

	hub.Unregister("conn-a")
	if _, ok := hub.Lookup("alice"); ok {
		t.Fatalf("expected alice to be offline after unregister")
	}

	// Unknown connection is a no-op.
	hub.Unregister("ghost")
}

func TestHubLastRegistrationWins(t *testing.T) {
	hub, _ := startHub(t)

	first := NewClient("conn-1", "alice", "alice")
	second := NewClient("conn-2", "alice", "alice")
	hub.Register(first)
	hub.Register(second)

	connID, ok := hub.Lookup("alice")
	if !ok || connID != "conn-2" {
		t.Fatalf("expected conn-2 to win, got %q", connID)
	}

	msg := &store.Message{ID: "m1", Text: "hi"}
	if out := hub.Dispatch("alice", NewMessageEvent(msg)); out != Delivered {
		t.Fatalf("expected delivered, got %v", out)
	}
	mustEvent(t, second.Events, EventNewMessage)
	mustNoEvent(t, first.Events)

	// Closing the superseded connection must not take the user offline.
	hub.Unregister("conn-1")
	if connID, ok := hub.Lookup("alice"); !ok || connID != "conn-2" {
		t.Fatalf("expected conn-2 to survive, got %q (ok=%v)", connID, ok)
	}
}

func TestHubDispatchOfflineIsSkipped(t *testing.T) {
	hub, _ := startHub(t)

	if out := hub.Dispatch("nobody", MessagesSeenEvent("c1")); out != Skipped {
		t.Fatalf("expected skipped, got %v", out)
	}
}

func TestHubDispatchFullBufferIsSkipped(t *testing.T) {
	hub, _ := startHub(t)

	bob := NewClient("conn-b", "bob", "bob")
	hub.Register(bob)

	for i := 0; i < eventBuffer; i++ {
		if out := hub.Dispatch("bob", MessagesSeenEvent("c1")); out != Delivered {
			t.Fatalf("dispatch %d: expected delivered, got %v", i, out)
		}
	}
	if out := hub.Dispatch("bob", MessagesSeenEvent("c1")); out != Skipped {
		t.Fatalf("expected skipped on full buffer, got %v", out)
	}
}

func TestHubDispatchPreservesOrder(t *testing.T) {
	hub, _ := startHub(t)

	bob := NewClient("conn-b", "bob", "bob")
	hub.Register(bob)

	for i := 0; i < 10; i++ {
		hub.Dispatch("bob", NewMessageEvent(&store.Message{ID: fmt.Sprintf("m%d", i)}))
	}
	for i := 0; i < 10; i++ {
		ev := mustEvent(t, bob.Events, EventNewMessage)
		if want := fmt.Sprintf("m%d", i); ev.Message.ID != want {
			t.Fatalf("expected %s, got %s", want, ev.Message.ID)
		}
	}
}

func TestHubOnline(t *testing.T) {
	hub, _ := startHub(t)

	hub.Register(NewClient("c1", "alice", ""))
	hub.Register(NewClient("c2", "carol", ""))

	got := hub.Online("alice", "bob", "carol")
	sort.Strings(got)
	if len(got) != 2 || got[0] != "alice" || got[1] != "carol" {
		t.Fatalf("unexpected online set: %v", got)
	}
}

func TestHubStoppedIsTotal(t *testing.T) {
	hub, cancel := startHub(t)
	hub.Register(NewClient("c1", "alice", ""))

	cancel()
	<-hub.done

	if _, ok := hub.Lookup("alice"); ok {
		t.Fatalf("expected lookup to report absent after stop")
	}
	if out := hub.Dispatch("alice", MessagesSeenEvent("c")); out != Skipped {
		t.Fatalf("expected skipped after stop, got %v", out)
	}
	if got := hub.Online("alice"); len(got) != 0 {
		t.Fatalf("expected nobody online after stop, got %v", got)
	}
	hub.Register(NewClient("c2", "bob", ""))
	hub.Unregister("c1")
}

func TestHubConcurrentAccess(t *testing.T) {
	hub, _ := startHub(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%5)
			conn := fmt.Sprintf("c%d", i)
			c := NewClient(conn, user, "")
			hub.Register(c)
			hub.Dispatch(user, MessagesSeenEvent("x"))
			hub.Lookup(user)
			hub.Unregister(conn)
		}(i)
	}
	wg.Wait()

	if got := hub.Online("u0", "u1", "u2", "u3", "u4"); len(got) != 0 {
		t.Fatalf("expected all users offline, got %v", got)
	}
}
