package network

import (
	"encoding/json"
	"testing"

	"arena-core/internal/geom"
)

// TestInputMessageMissingFields verifies partial input messages decode
// to neutral values instead of erroring.
func TestInputMessageMissingFields(t *testing.T) {
	var msg InputMessage
	if err := json.Unmarshal([]byte(`{"sendTimestamp":1234}`), &msg); err != nil {
		t.Fatalf("partial message must decode: %v", err)
	}

	if msg.MoveAxisX != 0 || msg.MoveAxisZ != 0 {
		t.Error("missing axes should default to zero")
	}
	if msg.Sprint || msg.Jump || msg.FirePressed || msg.SecondaryPressed || msg.ReloadPressed {
		t.Error("missing buttons should default to false")
	}
	if msg.SendTimestamp != 1234 {
		t.Errorf("present field lost: %d", msg.SendTimestamp)
	}

	// Missing facing falls back to the default forward axis.
	if got := msg.FacingVec(); got != (geom.Vec3{Z: 1}) {
		t.Errorf("expected forward fallback, got %v", got)
	}
}

func TestInputMessageWireNames(t *testing.T) {
	data, err := json.Marshal(InputMessage{MoveAxisX: 1, Sprint: true, Facing: [3]float64{0, 0, 1}})
	if err != nil {
		t.Fatal(err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"moveAxisX", "moveAxisZ", "sprint", "jump", "firePressed", "secondaryPressed", "reloadPressed", "facing", "sendTimestamp"} {
		if _, ok := fields[name]; !ok {
			t.Errorf("wire field %q missing", name)
		}
	}
}

func TestSnapshotWireNames(t *testing.T) {
	snap := SnapshotMessage{
		Entities: []EntitySnapshot{{
			EntityID: "e1", Position: [3]float64{1, 2, 3},
			Health: 100, Ammo: 24, MagazineSize: 24,
		}},
		SendTimestamp: 99,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Entities []map[string]interface{} `json:"entities"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Entities) != 1 {
		t.Fatal("expected one entity record")
	}
	for _, name := range []string{"entityId", "position", "groundHeight", "grounded", "health", "ammo", "magazineSize", "reloading", "reloadEndTime"} {
		if _, ok := decoded.Entities[0][name]; !ok {
			t.Errorf("snapshot field %q missing", name)
		}
	}
}
