package sim

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"arena-core/internal/combat"
	"arena-core/internal/config"
	"arena-core/internal/geom"
	"arena-core/internal/network"
)

func testMatchOptions(host bool, tr network.Transport) MatchOptions {
	return MatchOptions{
		Host:       host,
		LocalName:  "alpha",
		RemoteName: "bravo",
		Class:      "soldier",
		WeaponID:   "rifle",
		Transport:  tr,
		Sim:        config.DefaultSim(),
		Movement:   config.DefaultMovement(),
		Tuning:     config.DefaultTuning(),
		Seed:       7,
	}
}

func marshalSnapshot(t *testing.T, snap network.SnapshotMessage) []byte {
	t.Helper()
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func snapshotAt(ts int64, localID, remoteID string, localX float64) network.SnapshotMessage {
	return network.SnapshotMessage{
		Entities: []network.EntitySnapshot{
			{EntityID: localID, Position: [3]float64{localX, combat.EyeHeight, 6}, Health: 100, Ammo: 24},
			{EntityID: remoteID, Position: [3]float64{0, combat.EyeHeight, -6}, Health: 100, Ammo: 24},
		},
		SendTimestamp: ts,
	}
}

// TestStaleSnapshotRejected drives the snapshot sequence [100, 300, 200]
// and verifies the out-of-order 200 is discarded: final applied state
// matches timestamp 300.
func TestStaleSnapshotRejected(t *testing.T) {
	m := NewMatch(testMatchOptions(false, nil))
	now := time.Now()

	apply := func(ts int64, x float64) {
		m.handleSnapshot(marshalSnapshot(t, snapshotAt(ts, m.Local.ID, m.Remote.ID, x)))
		m.Tick(now, Input{})
	}

	apply(100, 1)
	apply(300, 3)
	apply(200, 2)

	if m.StaleDropped() != 1 {
		t.Errorf("expected exactly one stale drop, got %d", m.StaleDropped())
	}
	// Snap threshold is far exceeded by these jumps, so position tracks
	// the applied snapshot exactly.
	if m.Local.Pos.X != 3 {
		t.Errorf("final state must match timestamp 300 (X=3), got %f", m.Local.Pos.X)
	}
}

// TestDuplicateSnapshotRejected verifies an equal timestamp counts as
// stale.
func TestDuplicateSnapshotRejected(t *testing.T) {
	m := NewMatch(testMatchOptions(false, nil))

	data := marshalSnapshot(t, snapshotAt(100, m.Local.ID, m.Remote.ID, 1))
	m.handleSnapshot(data)
	m.handleSnapshot(data)

	if m.StaleDropped() != 1 {
		t.Errorf("duplicate should be dropped, got %d drops", m.StaleDropped())
	}
}

// TestHostRemoteFrozenWithoutInput verifies the host does not
// extrapolate a silent remote peer.
func TestHostRemoteFrozenWithoutInput(t *testing.T) {
	m := NewMatch(testMatchOptions(true, nil))
	before := m.Remote.Pos

	now := time.Now()
	for i := 0; i < 60; i++ {
		m.Tick(now, Input{})
		now = now.Add(time.Second / 60)
	}

	if m.Remote.Pos != before {
		t.Errorf("remote entity moved without input: %v -> %v", before, m.Remote.Pos)
	}
}

// TestHostAppliesRemoteInput verifies received input messages drive the
// remote entity.
func TestHostAppliesRemoteInput(t *testing.T) {
	m := NewMatch(testMatchOptions(true, nil))

	msg := network.InputMessage{MoveAxisZ: 1, Facing: [3]float64{0, 0, 1}, SendTimestamp: 1}
	data, _ := json.Marshal(msg)
	m.handleInput(data)

	before := m.Remote.Pos
	now := time.Now()
	for i := 0; i < 60; i++ {
		m.Tick(now, Input{})
		now = now.Add(time.Second / 60)
	}

	if m.Remote.Pos.Z <= before.Z {
		t.Error("remote entity should advance on received input")
	}
}

// TestHostRoundEnd verifies elimination ends the round with the right
// winner and clears the projectile set.
func TestHostRoundEnd(t *testing.T) {
	m := NewMatch(testMatchOptions(true, nil))
	m.projectiles.Spawn(&combat.Projectile{Vel: geom.Vec3{Z: 1}, MaxRange: 100})

	m.Remote.Health = 1
	m.Remote.TakeDamage(5)

	report := m.Tick(time.Now(), Input{})
	if !report.RoundOver {
		t.Fatal("elimination must end the round")
	}
	if report.WinnerID != m.Local.ID {
		t.Errorf("winner should be the survivor, got %s", report.WinnerID)
	}
	if m.projectiles.Len() != 0 {
		t.Error("round end must clear live projectiles")
	}
}

// TestHostFireHitsClient runs a full host tick with fire held, aiming
// straight down the lane at the remote entity.
func TestHostFireHitsClient(t *testing.T) {
	m := NewMatch(testMatchOptions(true, nil))

	// Aim from the local spawn straight at the remote torso.
	aim := geom.Vec3{
		X: m.Remote.Pos.X - m.Local.Pos.X,
		Y: (m.Remote.GroundY + 1.25) - m.Local.Pos.Y,
		Z: m.Remote.Pos.Z - m.Local.Pos.Z,
	}
	report := m.Tick(time.Now(), Input{Fire: true, Facing: aim})

	if report.ShotsFired != 1 {
		t.Fatalf("expected one shot, got %d", report.ShotsFired)
	}
	if len(report.Hits) == 0 {
		t.Fatal("point-blank lane shot should connect")
	}
	if m.Remote.Health >= m.Remote.MaxHealth {
		t.Error("hit should have applied damage")
	}
	if m.Local.Weapon.Ammo != m.Local.Weapon.Spec.MagazineSize-1 {
		t.Errorf("one trigger pull decrements once, ammo %d", m.Local.Weapon.Ammo)
	}
}

// TestSnapshotCadence verifies the host broadcasts at the snapshot rate,
// not the tick rate.
func TestSnapshotCadence(t *testing.T) {
	hostEnd, clientEnd := network.NewLocalPair()
	defer clientEnd.Close()

	done := make(chan struct{}, 128)
	clientEnd.OnReceive(network.ChannelSnapshot, func([]byte) {
		done <- struct{}{}
	})

	m := NewMatch(testMatchOptions(true, hostEnd))

	// Simulate one second of ticks on a virtual clock.
	now := time.Now()
	for i := 0; i < 60; i++ {
		m.Tick(now, Input{})
		now = now.Add(time.Second / 60)
	}
	m.Teardown()

	// Drain deliveries.
	received := 0
	for draining := true; draining; {
		select {
		case <-done:
			received++
		case <-time.After(200 * time.Millisecond):
			draining = false
		}
	}
	if received < 25 || received > 35 {
		t.Errorf("expected ~30 snapshots over one simulated second, got %d", received)
	}
}

// TestClientDisconnectTeardown verifies link loss tears the match down
// and surfaces the only user-visible error.
func TestClientDisconnectTeardown(t *testing.T) {
	hostEnd, clientEnd := network.NewLocalPair()

	m := NewMatch(testMatchOptions(false, clientEnd))
	hostEnd.Close()

	// Give the dispatch goroutine a moment to surface the close.
	deadline := time.After(time.Second)
	for {
		report := m.Tick(time.Now(), Input{})
		if report.Disconnected {
			if report.DisconnectReason == "" {
				t.Error("disconnect reason should be set")
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("disconnect never surfaced")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	if m.projectiles.Len() != 0 {
		t.Error("teardown must clear projectiles")
	}
	// Further ticks stay inert.
	if report := m.Tick(time.Now(), Input{}); !report.Disconnected {
		t.Error("torn-down match must keep reporting disconnected")
	}
}

// TestZeroSimConfigClampsToDefaults verifies a zero-value SimConfig does
// not divide by zero: the match ticks at the default rates and movement
// stays finite.
func TestZeroSimConfigClampsToDefaults(t *testing.T) {
	m := NewMatch(MatchOptions{
		Host:       true,
		LocalName:  "alpha",
		RemoteName: "bravo",
		Class:      "soldier",
		WeaponID:   "rifle",
		Movement:   config.DefaultMovement(),
		Tuning:     config.DefaultTuning(),
	})

	now := time.Now()
	for i := 0; i < 60; i++ {
		m.Tick(now, Input{MoveZ: 1, Facing: geom.Vec3{Z: 1}})
		now = now.Add(time.Second / 60)
	}

	moved := m.Local.Pos.Z - (-6)
	if math.IsInf(moved, 0) || math.IsNaN(moved) {
		t.Fatalf("movement must stay finite, moved %f", moved)
	}
	// One simulated second of walking at the default tick rate.
	want := config.DefaultMovement().WalkSpeed
	if math.Abs(moved-want) > 0.1 {
		t.Errorf("expected ~%f of travel, got %f", want, moved)
	}
}

// TestShotEventMirrored verifies a host trigger pull surfaces on the
// client's next tick report for effects playback.
func TestShotEventMirrored(t *testing.T) {
	hostEnd, clientEnd := network.NewLocalPair()
	defer hostEnd.Close()

	host := NewMatch(testMatchOptions(true, hostEnd))
	client := NewMatch(testMatchOptions(false, clientEnd))

	aim := geom.Vec3{Z: host.Remote.Pos.Z - host.Local.Pos.Z}
	report := host.Tick(time.Now(), Input{Fire: true, Facing: aim})
	if report.ShotsFired != 1 {
		t.Fatalf("expected one shot, got %d", report.ShotsFired)
	}

	deadline := time.After(time.Second)
	for {
		report := client.Tick(time.Now(), Input{})
		if len(report.RemoteShots) > 0 {
			shot := report.RemoteShots[0]
			if shot.ShooterID != client.Remote.ID {
				t.Errorf("shooter should be the remote peer, got %s", shot.ShooterID)
			}
			if shot.WeaponID != "rifle" {
				t.Errorf("unexpected weapon %s", shot.WeaponID)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("shot event never surfaced")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// TestClientPredictionMatchesHost verifies the shared integrator: the
// same input stream produces identical positions on both roles.
func TestClientPredictionMatchesHost(t *testing.T) {
	host := NewMatch(testMatchOptions(true, nil))
	client := NewMatch(testMatchOptions(false, nil))

	in := Input{MoveZ: 1, Facing: geom.Vec3{Z: 1}}
	now := time.Now()
	for i := 0; i < 120; i++ {
		host.Tick(now, in)
		client.Tick(now, in)
		now = now.Add(time.Second / 60)
	}

	// host.Local and client.Local are controlled by the same input but
	// spawn at mirrored points; compare displacement.
	hostDz := host.Local.Pos.Z - (-6)
	clientDz := client.Local.Pos.Z - 6
	if hostDz != clientDz {
		t.Errorf("integrators diverged: host %f client %f", hostDz, clientDz)
	}
}
