package sim

import (
	"arena-core/internal/combat"
	"arena-core/internal/config"
	"arena-core/internal/geom"
	"arena-core/internal/network"
)

// PredictedState is the client's last-known kinematic state for its own
// entity, carried across ticks so the predictor survives the entity
// being overwritten by snapshot application.
type PredictedState struct {
	Pos      geom.Vec3
	VelY     float64
	Grounded bool
}

// ReconcileResult reports one snapshot correction for logging and
// metrics.
type ReconcileResult struct {
	Snapped bool
	ErrorSq float64 // squared predicted-vs-authoritative distance
	Applied geom.Vec3
}

// Predictor owns the client-side prediction buffer for the locally
// controlled entity. Load/Store bracket the movement step each tick;
// Reconcile corrects toward the authoritative position on snapshot
// arrival: snap beyond the threshold, exponential blend inside it.
type Predictor struct {
	tuning config.TuningConfig
	state  PredictedState
	primed bool
}

// NewPredictor creates a predictor with the given correction tuning.
func NewPredictor(tuning config.TuningConfig) *Predictor {
	return &Predictor{tuning: tuning}
}

// Load writes the buffered kinematic state into the entity before the
// movement step. The first tick has nothing buffered and leaves the
// entity as-is.
func (p *Predictor) Load(e *combat.Entity) {
	if !p.primed {
		return
	}
	e.Pos = p.state.Pos
	e.VelY = p.state.VelY
	e.Grounded = p.state.Grounded
}

// Store reads the entity's kinematic state back into the buffer after
// the movement step.
func (p *Predictor) Store(e *combat.Entity) {
	p.state = PredictedState{Pos: e.Pos, VelY: e.VelY, Grounded: e.Grounded}
	p.primed = true
}

// Reconcile corrects the entity toward an authoritative snapshot record.
// Position beyond the snap threshold is an unrecoverable divergence
// (teleport, mispredicted collision) and snaps exactly; inside it, a
// fixed fraction of the error is corrected per snapshot so small drift
// heals without rubber-banding. Health, ammo, and reload state are never
// predicted and always apply directly.
func (p *Predictor) Reconcile(e *combat.Entity, rec network.EntitySnapshot) ReconcileResult {
	auth := rec.PositionVec()
	errSq := e.Pos.DistanceSq(auth)

	res := ReconcileResult{ErrorSq: errSq}
	threshold := p.tuning.SnapThreshold
	if errSq > threshold*threshold {
		e.Pos = auth
		res.Snapped = true
	} else {
		e.Pos = e.Pos.Lerp(auth, p.tuning.BlendFactor)
	}
	res.Applied = e.Pos

	e.GroundY = rec.GroundHeight
	e.Grounded = rec.Grounded
	e.Health = rec.Health
	e.Alive = rec.Health > 0
	if e.Weapon != nil {
		e.Weapon.Ammo = rec.Ammo
		e.Weapon.Reloading = rec.Reloading
		if rec.ReloadEndTime > 0 {
			e.Weapon.ReloadEnd = millisToTime(rec.ReloadEndTime)
		}
	}

	// Keep the prediction buffer coherent with the corrected state.
	p.Store(e)
	return res
}

// Reset clears the buffer at match teardown.
func (p *Predictor) Reset() {
	p.state = PredictedState{}
	p.primed = false
}
