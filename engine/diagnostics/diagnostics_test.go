package diagnostics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/spaghettifunk/anima-ar/engine/core"
)

func warning(module string, n int) *core.RenderError {
	id := uuid.NullUUID{UUID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Valid: n%2 == 0}
	return core.NewWarning(module, core.KindInstanceOverflow, id, core.ErrInstanceOverflow)
}

func TestCollectorKeepsLastRecords(t *testing.T) {
	c := NewCollector(3)
	for i := 0; i < 5; i++ {
		c.EndFrame(uint64(i), nil, nil)
		c.Report(warning("AnchorsModule", i))
	}
	s := c.Snapshot()
	if len(s.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(s.Records))
	}
	for i, r := range s.Records {
		if r.Frame != uint64(i+2) {
			t.Errorf("record %d: expected frame %d, got %d", i, i+2, r.Frame)
		}
		if r.Kind != string(core.KindInstanceOverflow) || r.Severity != "warning" {
			t.Errorf("record %d: unexpected %+v", i, r)
		}
	}
	if s.Records[0].Entity == "" || s.Records[1].Entity != "" {
		t.Errorf("entity only expected on even records: %+v", s.Records)
	}
	if s.Warnings != 5 || s.Fatal != 0 {
		t.Errorf("expected 5 warnings and 0 fatal, got %d and %d", s.Warnings, s.Fatal)
	}
}

func TestCollectorDisablesFatalModules(t *testing.T) {
	c := NewCollector(8)
	c.Report(core.NewSetupError("TrackersModule", core.KindMissingFunction, core.ErrFunctionNotFound))
	c.Report(core.NewSetupError("AnchorsModule", core.KindMissingFunction, core.ErrFunctionNotFound))
	c.Report(nil)

	s := c.Snapshot()
	if s.Fatal != 2 {
		t.Fatalf("expected 2 fatal records, got %d", s.Fatal)
	}
	want := []string{"AnchorsModule", "TrackersModule"}
	if len(s.DisabledModules) != len(want) {
		t.Fatalf("expected %v, got %v", want, s.DisabledModules)
	}
	for i := range want {
		if s.DisabledModules[i] != want[i] {
			t.Errorf("expected %v, got %v", want, s.DisabledModules)
		}
	}
}

func TestCollectorCountsAreCopied(t *testing.T) {
	c := NewCollector(1)
	counts := map[string]int{"AnchorsModule": 4}
	c.EndFrame(7, counts, nil)
	counts["AnchorsModule"] = 9

	s := c.Snapshot()
	if s.Frame != 7 || s.InstanceCounts["AnchorsModule"] != 4 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	s.InstanceCounts["AnchorsModule"] = 1
	if c.Snapshot().InstanceCounts["AnchorsModule"] != 4 {
		t.Errorf("snapshot shares its map with the collector")
	}

	data, err := c.JSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := decoded["instance_counts"]; !ok {
		t.Errorf("missing instance_counts in %s", data)
	}
}

func TestServerBroadcast(t *testing.T) {
	c := NewCollector(4)
	s := NewServer(c)
	ts := httptest.NewServer(s.http.Handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var initial Snapshot
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if len(initial.Records) != 0 {
		t.Fatalf("expected an empty initial snapshot, got %+v", initial)
	}
	if s.Clients() != 1 {
		t.Fatalf("expected 1 client, got %d", s.Clients())
	}

	c.Report(core.NewWarning("PathsModule", core.KindMissingEntity, uuid.NullUUID{}, errors.New("gone")))
	c.EndFrame(3, map[string]int{"PathsModule": 2}, nil)
	s.Broadcast()

	var next Snapshot
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if next.Frame != 3 || len(next.Records) != 1 || next.InstanceCounts["PathsModule"] != 2 {
		t.Errorf("unexpected broadcast %+v", next)
	}
}

func TestServerSnapshotEndpoint(t *testing.T) {
	c := NewCollector(4)
	c.EndFrame(11, map[string]int{"AnchorsModule": 1}, nil)
	s := NewServer(c)

	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if snap.Frame != 11 {
		t.Errorf("expected frame 11, got %d", snap.Frame)
	}
}
