package sim

import (
	"encoding/json"
	"log"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"arena-core/internal/combat"
	"arena-core/internal/config"
	"arena-core/internal/geom"
	"arena-core/internal/network"
)

// MatchOptions configures one peer's side of a match.
type MatchOptions struct {
	Host       bool
	LocalName  string
	RemoteName string
	Class      string
	WeaponID   string

	// Entity IDs must agree across both peers so snapshot records
	// resolve to the same combatants on each side. Empty IDs default to
	// the role names.
	LocalID  string
	RemoteID string

	Registry  *combat.WeaponRegistry
	Solids    []geom.Shape
	Transport network.Transport
	Journal   *combat.Journal

	Sim      config.SimConfig
	Movement config.MovementConfig
	Tuning   config.TuningConfig

	Seed int64 // deterministic spread sampling; 0 seeds from the clock
}

// TickReport is what one tick hands back to the caller: the hit events
// resolved this tick and any match-level transition. Rendering and UI
// drain it; nothing inside the simulation calls back out.
type TickReport struct {
	Hits             []combat.HitEvent
	ShotsFired       int
	RoundOver        bool
	WinnerID         string
	Disconnected     bool
	DisconnectReason string

	// Client-side reconciliation outcome, when a snapshot applied.
	Reconciled bool
	Reconcile  ReconcileResult

	// Shot events mirrored from the host, for effects playback.
	RemoteShots []network.ShotMessage
}

// Match is the complete simulation context of one peer: both entities,
// the projectile set, the reconciliation state, and the latest-value
// network buffers. All game state mutation happens synchronously inside
// Tick; the only cross-goroutine traffic is the transport handlers
// overwriting the latest-value buffers under mu.
type Match struct {
	host bool

	Local  *combat.Entity
	Remote *combat.Entity

	registry    *combat.WeaponRegistry
	solids      []geom.Shape
	projectiles *combat.ProjectileSet
	journal     *combat.Journal
	mover       Mover
	rng         *rand.Rand

	predictor *Predictor
	interp    *Interpolator

	// Latest-value buffers written by the transport's read goroutine.
	// Newer messages overwrite older ones; the tick reads the most
	// recent value available. The transport itself is here because the
	// host attaches it from the accept goroutine mid-run.
	mu               sync.Mutex
	transport        network.Transport
	remoteInput      Input
	remoteInputTS    int64
	pendingSnapshot  *network.SnapshotMessage
	pendingShots     []network.ShotMessage
	latestSnapshotTS int64
	staleDropped     uint64
	disconnected     bool
	disconnectReason string

	tickCount        uint64
	tickRate         int
	snapshotEvery    time.Duration
	lastSnapshotSent time.Time
	snapshotsSent    uint64

	roundOver bool
	winnerID  string
	tornDown  bool

	// statusVal holds the latest published Status for lock-free reads
	// from the HTTP layer; the tick goroutine republishes every tick.
	statusVal atomic.Value
}

// EntityStatus is one entity's externally visible state.
type EntityStatus struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Pos    geom.Vec3 `json:"pos"`
	Health int       `json:"health"`
	Ammo   int       `json:"ammo"`
	Alive  bool      `json:"alive"`
}

// Status is a point-in-time view of the match for status endpoints.
// Published once per tick; readers never touch live simulation state.
type Status struct {
	Host          bool           `json:"host"`
	Tick          uint64         `json:"tick"`
	RoundOver     bool           `json:"roundOver"`
	WinnerID      string         `json:"winnerId,omitempty"`
	Projectiles   int            `json:"projectiles"`
	SnapshotsSent uint64         `json:"snapshotsSent"`
	StaleDropped  uint64         `json:"staleDropped"`
	Entities      []EntityStatus `json:"entities"`
}

// NewMatch builds the simulation context and wires the transport
// handlers for this peer's role.
func NewMatch(opts MatchOptions) *Match {
	registry := opts.Registry
	if registry == nil {
		registry = combat.NewWeaponRegistry()
	}

	local := combat.NewEntity(opts.LocalName, opts.Class, registry.NewWeapon(opts.WeaponID))
	remote := combat.NewEntity(opts.RemoteName, opts.Class, registry.NewWeapon(opts.WeaponID))

	local.ID, remote.ID = opts.LocalID, opts.RemoteID
	if local.ID == "" || remote.ID == "" {
		if opts.Host {
			local.ID, remote.ID = "host", "client"
		} else {
			local.ID, remote.ID = "client", "host"
		}
	}

	// Opposing spawn points facing each other across the arena origin,
	// identical on both peers: the host-role entity at -Z, the client-role
	// entity at +Z.
	hostEntity, clientEntity := local, remote
	if !opts.Host {
		hostEntity, clientEntity = remote, local
	}
	hostEntity.Pos.Z, hostEntity.Yaw = -6, 0
	clientEntity.Pos.Z, clientEntity.Yaw = 6, math.Pi

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// A zero-value SimConfig clamps to the defaults instead of dividing
	// by zero below.
	tickRate := opts.Sim.TickRate
	if tickRate <= 0 {
		tickRate = config.DefaultSim().TickRate
	}
	snapshotHz := opts.Sim.SnapshotHz
	if snapshotHz <= 0 {
		snapshotHz = config.DefaultSim().SnapshotHz
	}

	m := &Match{
		host:          opts.Host,
		Local:         local,
		Remote:        remote,
		registry:      registry,
		solids:        opts.Solids,
		projectiles:   &combat.ProjectileSet{},
		journal:       opts.Journal,
		transport:     opts.Transport,
		mover:         NewKinematicMover(opts.Movement),
		rng:           rand.New(rand.NewSource(seed)),
		predictor:     NewPredictor(opts.Tuning),
		interp:        &Interpolator{},
		tickRate:      tickRate,
		snapshotEvery: time.Second / time.Duration(snapshotHz),
	}

	if opts.Transport != nil {
		m.AttachTransport(opts.Transport)
	}
	return m
}

// AttachTransport wires the peer link into the match. The host attaches
// after the remote peer connects; before that the match simulates with a
// frozen remote entity. Safe to call from the accept goroutine while the
// tick loop runs.
func (m *Match) AttachTransport(tr network.Transport) {
	if m.host {
		tr.OnReceive(network.ChannelInput, m.handleInput)
	} else {
		tr.OnReceive(network.ChannelSnapshot, m.handleSnapshot)
		tr.OnReceive(network.ChannelShot, m.handleShot)
	}
	tr.OnDisconnect(m.handleDisconnect)

	m.mu.Lock()
	m.transport = tr
	m.mu.Unlock()
}

func (m *Match) transportRef() network.Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport
}

// Tick advances the match by one fixed step using the locally captured
// input, and returns everything that happened.
func (m *Match) Tick(now time.Time, localInput Input) TickReport {
	if m.tornDown {
		return TickReport{Disconnected: m.disconnected, DisconnectReason: m.disconnectReason}
	}

	m.mu.Lock()
	dead := m.disconnected
	reason := m.disconnectReason
	m.mu.Unlock()
	if dead {
		// Connection loss is fatal to the match: tear everything down.
		m.Teardown()
		m.emitDisconnect(reason)
		return TickReport{Disconnected: true, DisconnectReason: reason}
	}

	m.tickCount++
	dt := 1.0 / float64(m.tickRate)

	var report TickReport
	if m.host {
		report = m.hostTick(now, dt, localInput)
	} else {
		report = m.clientTick(now, dt, localInput)
	}
	m.publishStatus()
	return report
}

func (m *Match) publishStatus() {
	m.statusVal.Store(Status{
		Host:          m.host,
		Tick:          m.tickCount,
		RoundOver:     m.roundOver,
		WinnerID:      m.winnerID,
		Projectiles:   m.projectiles.Len(),
		SnapshotsSent: m.snapshotsSent,
		StaleDropped:  m.StaleDropped(),
		Entities: []EntityStatus{
			entityStatus(m.Local),
			entityStatus(m.Remote),
		},
	})
}

func entityStatus(e *combat.Entity) EntityStatus {
	st := EntityStatus{ID: e.ID, Name: e.Name, Pos: e.Pos, Health: e.Health, Alive: e.Alive}
	if e.Weapon != nil {
		st.Ammo = e.Weapon.Ammo
	}
	return st
}

// Status returns the most recently published match status. Safe from any
// goroutine.
func (m *Match) Status() Status {
	if v := m.statusVal.Load(); v != nil {
		return v.(Status)
	}
	return Status{Host: m.host}
}

// hostTick advances both entities authoritatively: the local one from
// captured input, the remote one from the latest received input message
// (neutral if none has arrived, freezing rather than extrapolating).
func (m *Match) hostTick(now time.Time, dt float64, localInput Input) TickReport {
	m.mu.Lock()
	remoteInput := m.remoteInput
	m.mu.Unlock()

	m.mover.Step(m.Local, localInput, dt)
	m.mover.Step(m.Remote, remoteInput, dt)

	report := TickReport{}
	m.resolveCombat(now, m.Local, localInput, m.Remote, &report)
	m.resolveCombat(now, m.Remote, remoteInput, m.Local, &report)

	targets := []combat.Target{
		combat.SegmentedTarget(m.Local),
		combat.SegmentedTarget(m.Remote),
	}
	hits := m.projectiles.Update(dt, targets, m.solids)
	for _, ev := range hits {
		m.emitDamage(ev)
	}
	report.Hits = append(report.Hits, hits...)

	if !m.roundOver {
		if !m.Local.Alive {
			m.endRound(m.Remote.ID, m.Local.ID)
		} else if !m.Remote.Alive {
			m.endRound(m.Local.ID, m.Remote.ID)
		}
	}
	report.RoundOver = m.roundOver
	report.WinnerID = m.winnerID

	// Snapshot cadence is enforced by elapsed time, never by skipping
	// simulation ticks.
	if now.Sub(m.lastSnapshotSent) >= m.snapshotEvery {
		m.sendSnapshot(now)
		m.lastSnapshotSent = now
	}

	if m.journal != nil && m.tickCount%uint64(m.tickRate) == 0 {
		m.journal.EmitSimple(combat.EventTypeTick, m.tickCount, "", combat.TickPayload{
			DeltaTimeNs: int64(dt * 1e9),
			Projectiles: m.projectiles.Len(),
		})
	}
	return report
}

// resolveCombat fires/reloads one entity's weapon against the other as
// the sole target.
func (m *Match) resolveCombat(now time.Time, shooter *combat.Entity, in Input, target *combat.Entity, report *TickReport) {
	if !shooter.Alive || shooter.Weapon == nil {
		return
	}

	w := shooter.Weapon
	w.Update(now)

	if in.Reload {
		w.BeginReload(now)
	}

	opts := combat.FireOpts{
		Now:       now,
		SourceID:  shooter.ID,
		Sprinting: in.Sprint,
		Rand:      m.rng,
	}
	targets := []combat.Target{combat.SegmentedTarget(target)}
	origin := shooter.Pos
	aim := in.AimDir(shooter)

	if in.Fire {
		res := combat.Fire(w, origin, aim, targets, m.solids, opts)
		if res.PelletsFired > 0 {
			report.ShotsFired++
			m.emitShot(shooter, res)
			m.sendShot(shooter, origin, aim, res)
		}
		if len(res.Spawned) > 0 {
			m.projectiles.Spawn(res.Spawned...)
		}
		for _, ev := range res.Events {
			m.emitDamage(ev)
		}
		report.Hits = append(report.Hits, res.Events...)
		if res.MagazineEmpty && !w.Reloading {
			w.BeginReload(now)
		}
	}

	if in.Secondary {
		res := combat.Melee(w, origin, aim, targets, m.solids, opts)
		for _, ev := range res.Events {
			m.emitDamage(ev)
		}
		report.Hits = append(report.Hits, res.Events...)
	}
}

// clientTick predicts the local entity forward with the shared
// integrator, publishes raw input to the host, and applies any pending
// authoritative snapshot.
func (m *Match) clientTick(now time.Time, dt float64, localInput Input) TickReport {
	m.predictor.Load(m.Local)
	m.mover.Step(m.Local, localInput, dt)
	m.predictor.Store(m.Local)

	if tr := m.transportRef(); tr != nil {
		msg := localInput.Message()
		msg.SendTimestamp = network.NowMillis()
		if err := network.SendJSON(tr, network.ChannelInput, msg); err != nil {
			log.Printf("⚠️ Input send failed: %v", err)
		}
	}

	m.mu.Lock()
	snap := m.pendingSnapshot
	m.pendingSnapshot = nil
	shots := m.pendingShots
	m.pendingShots = nil
	m.mu.Unlock()

	report := TickReport{RemoteShots: shots}
	if snap != nil {
		if res, ok := m.applySnapshot(snap); ok {
			report.Reconciled = true
			report.Reconcile = res
		}
	}
	report.RoundOver = m.roundOver
	report.WinnerID = m.winnerID
	return report
}

// applySnapshot reconciles the local entity and buffers the remote one
// for interpolation. Snapshots are consumed, never mutated. Returns the
// local reconciliation outcome when the snapshot carried our entity.
func (m *Match) applySnapshot(snap *network.SnapshotMessage) (ReconcileResult, bool) {
	var res ReconcileResult
	var reconciled bool

	nowMs := network.NowMillis()
	for _, rec := range snap.Entities {
		switch rec.EntityID {
		case m.Local.ID:
			res = m.predictor.Reconcile(m.Local, rec)
			reconciled = true
		case m.Remote.ID:
			m.interp.Push(rec.PositionVec(), snap.SendTimestamp, nowMs)
			m.Remote.Pos = rec.PositionVec()
			m.Remote.GroundY = rec.GroundHeight
			m.Remote.Grounded = rec.Grounded
			m.Remote.Health = rec.Health
			m.Remote.Alive = rec.Health > 0
			if m.Remote.Weapon != nil {
				m.Remote.Weapon.Ammo = rec.Ammo
				m.Remote.Weapon.Reloading = rec.Reloading
			}
		}
	}

	if !m.roundOver {
		if !m.Local.Alive {
			m.roundOver, m.winnerID = true, m.Remote.ID
		} else if !m.Remote.Alive {
			m.roundOver, m.winnerID = true, m.Local.ID
		}
	}
	return res, reconciled
}

// RemoteRenderPos returns the interpolated remote position for
// rendering, or the last simulated position before any snapshot arrives.
func (m *Match) RemoteRenderPos(nowMillis int64) geom.Vec3 {
	if pos, ok := m.interp.At(nowMillis); ok {
		return pos
	}
	return m.Remote.Pos
}

// sendSnapshot serializes both entities and broadcasts. Fire-and-forget:
// state is republished every snapshot, so one dropped message self-heals
// on the next.
func (m *Match) sendSnapshot(now time.Time) {
	tr := m.transportRef()
	if tr == nil {
		return
	}

	snap := network.SnapshotMessage{
		Entities: []network.EntitySnapshot{
			entityRecord(m.Local),
			entityRecord(m.Remote),
		},
		SendTimestamp: now.UnixMilli(),
	}
	if err := network.SendJSON(tr, network.ChannelSnapshot, snap); err != nil {
		log.Printf("⚠️ Snapshot send failed: %v", err)
		return
	}
	m.snapshotsSent++
}

func entityRecord(e *combat.Entity) network.EntitySnapshot {
	rec := network.EntitySnapshot{
		EntityID:     e.ID,
		Position:     network.VecArray(e.Pos),
		GroundHeight: e.GroundY,
		Grounded:     e.Grounded,
		Health:       e.Health,
	}
	if e.Weapon != nil {
		rec.Ammo = e.Weapon.Ammo
		rec.MagazineSize = e.Weapon.Spec.MagazineSize
		rec.Reloading = e.Weapon.Reloading
		if e.Weapon.Reloading {
			rec.ReloadEndTime = e.Weapon.ReloadEnd.UnixMilli()
		}
	}
	return rec
}

// sendShot mirrors a resolved trigger pull to the peer so it can play
// effects before the next snapshot lands. Fire-and-forget.
func (m *Match) sendShot(shooter *combat.Entity, origin, aim geom.Vec3, res combat.FireResult) {
	tr := m.transportRef()
	if tr == nil {
		return
	}
	msg := network.ShotMessage{
		ShooterID:     shooter.ID,
		WeaponID:      shooter.Weapon.Spec.ID,
		Origin:        network.VecArray(origin),
		Direction:     network.VecArray(aim),
		Hits:          res.Hits,
		SendTimestamp: network.NowMillis(),
	}
	if err := network.SendJSON(tr, network.ChannelShot, msg); err != nil {
		log.Printf("⚠️ Shot event send failed: %v", err)
	}
}

// handleShot buffers mirrored shot events until the next tick drains
// them. Runs on the transport's read goroutine.
func (m *Match) handleShot(payload []byte) {
	var msg network.ShotMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("⚠️ Dropping malformed shot event: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingShots = append(m.pendingShots, msg)
}

// handleInput stores the latest remote input, discarding out-of-order
// samples. Runs on the transport's read goroutine.
func (m *Match) handleInput(payload []byte) {
	var msg network.InputMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("⚠️ Dropping malformed input message: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.SendTimestamp != 0 && msg.SendTimestamp < m.remoteInputTS {
		m.staleDropped++
		return
	}
	m.remoteInput = InputFromMessage(msg)
	m.remoteInputTS = msg.SendTimestamp
}

// handleSnapshot stores the latest snapshot, silently discarding any
// older than the newest already accepted. Runs on the transport's read
// goroutine.
func (m *Match) handleSnapshot(payload []byte) {
	var snap network.SnapshotMessage
	if err := json.Unmarshal(payload, &snap); err != nil {
		log.Printf("⚠️ Dropping malformed snapshot: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.SendTimestamp <= m.latestSnapshotTS {
		m.staleDropped++
		return
	}
	m.latestSnapshotTS = snap.SendTimestamp
	m.pendingSnapshot = &snap
}

func (m *Match) handleDisconnect(reason string) {
	m.mu.Lock()
	m.disconnected = true
	m.disconnectReason = reason
	m.mu.Unlock()
}

func (m *Match) endRound(winnerID, loserID string) {
	m.roundOver = true
	m.winnerID = winnerID
	m.projectiles.Clear()

	if m.journal != nil {
		m.journal.EmitSimple(combat.EventTypeRoundEnd, m.tickCount, winnerID,
			combat.RoundEndPayload{WinnerID: winnerID, LoserID: loserID})
	}
	log.Printf("🏆 Round over, winner %s", winnerID)
}

// Teardown clears all transient state unconditionally and closes the
// transport. Safe to call more than once.
func (m *Match) Teardown() {
	if m.tornDown {
		return
	}
	m.tornDown = true

	m.projectiles.Clear()
	m.predictor.Reset()
	m.interp.Reset()

	m.mu.Lock()
	m.pendingSnapshot = nil
	m.pendingShots = nil
	m.mu.Unlock()

	if tr := m.transportRef(); tr != nil {
		tr.Close()
	}
	log.Println("🛑 Match torn down")
}

// StaleDropped returns how many out-of-order messages were discarded.
func (m *Match) StaleDropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.staleDropped
}

// TickCount returns the number of completed ticks.
func (m *Match) TickCount() uint64 {
	return m.tickCount
}

// RoundOver reports whether the round has ended and who won.
func (m *Match) RoundOver() (bool, string) {
	return m.roundOver, m.winnerID
}

func (m *Match) emitShot(shooter *combat.Entity, res combat.FireResult) {
	if m.journal == nil {
		return
	}
	m.journal.EmitSimple(combat.EventTypeShot, m.tickCount, shooter.ID, combat.ShotPayload{
		ShooterID: shooter.ID,
		WeaponID:  shooter.Weapon.Spec.ID,
		Pellets:   res.PelletsFired,
		Hits:      res.Hits,
		AmmoLeft:  shooter.Weapon.Ammo,
	})
}

func (m *Match) emitDamage(ev combat.HitEvent) {
	if m.journal == nil {
		return
	}
	m.journal.EmitSimple(combat.EventTypeDamage, m.tickCount, "", combat.DamagePayload{
		TargetID:   ev.Target.ID,
		Segment:    ev.Segment,
		Multiplier: ev.Multiplier,
		Damage:     ev.Damage,
		TargetHP:   ev.Target.Health,
	})
	if ev.Killed {
		m.journal.EmitSimple(combat.EventTypeKill, m.tickCount, "", combat.DamagePayload{
			TargetID: ev.Target.ID,
			Segment:  ev.Segment,
			Damage:   ev.Damage,
		})
	}
}

func (m *Match) emitDisconnect(reason string) {
	if m.journal == nil {
		return
	}
	m.journal.EmitSimple(combat.EventTypeDisconnect, m.tickCount, "",
		combat.DisconnectPayload{Reason: reason})
}
