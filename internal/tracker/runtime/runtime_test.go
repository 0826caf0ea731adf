package runtime

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"celestetracker.ai/internal/persistence/dpcache"
	"celestetracker.ai/internal/persistence/kvstore"
	"celestetracker.ai/internal/protocol"
	"celestetracker.ai/internal/tracker/catalog"
	"celestetracker.ai/internal/tracker/logic"
	"celestetracker.ai/internal/tracker/session"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	dash := logic.Has("dashrefills")
	c, err := catalog.New([]catalog.Entry{
		catalog.NewEntry("Forsaken City A - Room 2 Strawberry", &dash),
		catalog.NewEntry("The Summit A - Cassette", nil),
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

const dataPackageJSON = `{"cmd":"DataPackage","data":{"games":{"Celeste (Open World)":{
	"checksum":"c1",
	"location_name_to_id":{"Forsaken City A - Room 2 Strawberry":500,"The Summit A - Cassette":700},
	"item_name_to_id":{"Dash Refills":900,"Strawberry":910}}}}}`

// fakeRoom plays a short multiworld session and forwards every client frame.
func fakeRoom(t *testing.T, frames chan<- string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()
		write := func(s string) { _ = c.WriteMessage(websocket.TextMessage, []byte(s)) }
		read := func() bool {
			_, b, err := c.ReadMessage()
			if err != nil {
				return false
			}
			select {
			case frames <- string(b):
			default:
			}
			return true
		}

		write(`[{"cmd":"RoomInfo","seed_name":"s1","password":false}]`)
		if !read() {
			return
		}
		write(`[{"cmd":"Connected","team":0,"slot":1,"checked_locations":[],"missing_locations":[500,700]},` + dataPackageJSON + `]`)
		if !read() {
			return
		}
		write(`[{"cmd":"ReceivedItems","index":0,"items":[{"item":900,"location":1,"player":1}]},{"cmd":"RoomUpdate","checked_locations":[500]}]`)
		for read() {
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func nextFrame(t *testing.T, frames <-chan string) string {
	t.Helper()
	select {
	case f := <-frames:
		return f
	case <-time.After(5 * time.Second):
		t.Fatalf("no client frame")
	}
	return ""
}

func newRuntime(t *testing.T, url string, store *kvstore.Store, cache *dpcache.Cache, logs *syncBuffer) *Runtime {
	t.Helper()
	r, err := New(context.Background(), Config{
		Catalog:       testCatalog(t),
		Settings:      kvstore.Settings{URL: url, SlotName: "Player1", ClientUUID: "uuid-1"},
		RetryInterval: 20 * time.Millisecond,
		MaxRetries:    2,
	}, Deps{Store: store, Cache: cache, Logger: log.New(logs, "", 0)})
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	return r
}

func objective(s session.State, key string) session.Objective {
	o, _ := s.Objective(key)
	return o
}

func TestSessionSyncsAndPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := kvstore.Open(filepath.Join(dir, "state.sqlite"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer store.Close()
	cache := dpcache.New(filepath.Join(dir, "dp"))

	frames := make(chan string, 16)
	ts := fakeRoom(t, frames)
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	logs := &syncBuffer{}
	r := newRuntime(t, url, store, cache, logs)
	r.Connect()

	if f := nextFrame(t, frames); !strings.Contains(f, `"cmd":"Connect"`) || !strings.Contains(f, `"cmd":"GetDataPackage"`) {
		t.Fatalf("handshake frame: %s", f)
	}
	if f := nextFrame(t, frames); !strings.Contains(f, `"cmd":"Get"`) || !strings.Contains(f, protocol.KeyCheckedLocations) {
		t.Fatalf("get frame: %s", f)
	}

	waitUntil(t, "berry checked", func() bool {
		return objective(r.State(), "Forsaken_City_A_Room_2_Strawberry").Checked
	})
	s := r.State()
	if s.Phase != session.PhaseSynced || !s.Caps["dashrefills"] {
		t.Fatalf("phase=%s caps=%v", s.Phase, s.Caps.Unlocked())
	}

	waitUntil(t, "persisted checks", func() bool {
		var checked map[string]bool
		ok, _ := store.GetJSON(ctx, kvstore.KeyChecked, &checked)
		return ok && checked["Forsaken_City_A_Room_2_Strawberry"]
	})
	var caps map[string]bool
	if ok, err := store.GetJSON(ctx, kvstore.KeyMechanics, &caps); !ok || err != nil || !caps["dashrefills"] {
		t.Fatalf("persisted caps: %v ok=%v err=%v", caps, ok, err)
	}
	if _, _, ok, err := cache.Load(url); !ok || err != nil {
		t.Fatalf("data package not cached: ok=%v err=%v", ok, err)
	}

	if err := r.RequestCheck(ctx, "The_Summit_A_Cassette"); err != nil {
		t.Fatalf("request check: %v", err)
	}
	if f := nextFrame(t, frames); f != `[{"cmd":"LocationChecks","locations":[700]}]` {
		t.Fatalf("check frame: %s", f)
	}
	r.Close()

	// A second run starts from the stored progress and the cached package.
	r2 := newRuntime(t, url, store, cache, logs)
	defer r2.Close()
	s2 := r2.State()
	if !objective(s2, "Forsaken_City_A_Room_2_Strawberry").Checked || !objective(s2, "The_Summit_A_Cassette").Checked {
		t.Fatalf("checks not restored")
	}
	if !s2.Caps["dashrefills"] {
		t.Fatalf("caps not restored")
	}
	r2.Connect()
	waitUntil(t, "cache hit", func() bool { return strings.Contains(logs.String(), "data_package_cache_hit") })
}

func TestStatusLine(t *testing.T) {
	r := newRuntime(t, "ws://127.0.0.1:1", nil, nil, &syncBuffer{})
	defer r.Close()
	line := r.StatusLine()
	if !strings.HasPrefix(line, "status phase=idle checked=0/2") {
		t.Fatalf("line=%s", line)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r := newRuntime(t, "ws://127.0.0.1:1", nil, nil, &syncBuffer{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, false) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop")
	}
}
