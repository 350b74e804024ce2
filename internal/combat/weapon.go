package combat

import "time"

// WeaponSpec is the immutable balance configuration for one weapon.
// A zero ProjectileSpeed means hitscan resolution.
type WeaponSpec struct {
	ID     string
	Name   string
	Damage int

	MagazineSize int
	Pellets      int
	Spread       float64 // cone half-angle, radians
	SprintSpread float64 // widened cone while sprinting
	MaxRange     float64

	Cooldown   time.Duration // between trigger pulls
	ReloadTime time.Duration

	ProjectileSpeed   float64 // units/second; 0 => hitscan
	ProjectileGravity float64 // units/second^2 applied to projectile velocity

	MeleeRange    float64
	MeleeDamage   int
	MeleeCooldown time.Duration
}

// Weapon is the mutable per-entity firing state around a spec.
type Weapon struct {
	Spec WeaponSpec

	Ammo      int
	Reloading bool
	ReloadEnd time.Time
	LastShot  time.Time
	LastMelee time.Time
}

// Update clears a finished reload and refills the magazine. Reload clears
// only once now has reached the completion timestamp, never early.
func (w *Weapon) Update(now time.Time) {
	if w.Reloading && !now.Before(w.ReloadEnd) {
		w.Reloading = false
		w.Ammo = w.Spec.MagazineSize
	}
}

// BeginReload starts a reload if one is not already running. Reloading a
// full magazine is a no-op.
func (w *Weapon) BeginReload(now time.Time) {
	if w.Reloading || w.Ammo >= w.Spec.MagazineSize {
		return
	}
	w.Reloading = true
	w.ReloadEnd = now.Add(w.Spec.ReloadTime)
}

// CanFire reports whether a trigger pull at now would fire: not reloading
// and past the per-shot cooldown. Ammo is checked separately by Fire so an
// empty pull can enter reload instead.
func (w *Weapon) CanFire(now time.Time) bool {
	if w.Reloading {
		return false
	}
	return now.Sub(w.LastShot) >= w.Spec.Cooldown
}

// CanMelee reports whether a melee swing at now is off cooldown. Melee has
// no ammo interaction.
func (w *Weapon) CanMelee(now time.Time) bool {
	return now.Sub(w.LastMelee) >= w.Spec.MeleeCooldown
}

// Refill restores a full magazine and clears any reload in progress.
func (w *Weapon) Refill(now time.Time) {
	w.Ammo = w.Spec.MagazineSize
	w.Reloading = false
	w.ReloadEnd = now
}

// SpreadFor returns the cone half-angle for the current movement state.
func (w *Weapon) SpreadFor(sprinting bool) float64 {
	if sprinting && w.Spec.SprintSpread > w.Spec.Spread {
		return w.Spec.SprintSpread
	}
	return w.Spec.Spread
}

// WeaponRegistry maps weapon IDs to specs. It is passed by reference into
// each simulation context instead of living in package-level state so
// independent matches and tests never cross-contaminate.
type WeaponRegistry struct {
	specs    map[string]WeaponSpec
	fallback string
}

// NewWeaponRegistry returns a registry loaded with the default arsenal.
func NewWeaponRegistry() *WeaponRegistry {
	r := &WeaponRegistry{
		specs:    make(map[string]WeaponSpec),
		fallback: "rifle",
	}
	for _, spec := range defaultArsenal {
		r.specs[spec.ID] = spec
	}
	return r
}

// Register adds or replaces a spec.
func (r *WeaponRegistry) Register(spec WeaponSpec) {
	r.specs[spec.ID] = spec
}

// Spec returns the spec for an ID, falling back to the default weapon for
// unknown IDs.
func (r *WeaponRegistry) Spec(id string) WeaponSpec {
	if s, ok := r.specs[id]; ok {
		return s
	}
	return r.specs[r.fallback]
}

// NewWeapon instantiates firing state for a weapon ID with a full magazine.
func (r *WeaponRegistry) NewWeapon(id string) *Weapon {
	spec := r.Spec(id)
	return &Weapon{Spec: spec, Ammo: spec.MagazineSize}
}

// All returns every registered spec.
func (r *WeaponRegistry) All() []WeaponSpec {
	out := make([]WeaponSpec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	return out
}

// defaultArsenal is the stock weapon balance. Spread angles are radians;
// ranges and speeds are world units (meters).
var defaultArsenal = []WeaponSpec{
	{
		ID:           "rifle",
		Name:         "Pulse Rifle",
		Damage:       22,
		MagazineSize: 24,
		Pellets:      1,
		Spread:       0.004,
		SprintSpread: 0.035,
		MaxRange:     120,
		Cooldown:     120 * time.Millisecond,
		ReloadTime:   1800 * time.Millisecond,

		MeleeRange:    1.8,
		MeleeDamage:   40,
		MeleeCooldown: 800 * time.Millisecond,
	},
	{
		ID:           "scattergun",
		Name:         "Scattergun",
		Damage:       9,
		MagazineSize: 6,
		Pellets:      8,
		Spread:       0.06,
		SprintSpread: 0.1,
		MaxRange:     30,
		Cooldown:     650 * time.Millisecond,
		ReloadTime:   2200 * time.Millisecond,

		MeleeRange:    1.8,
		MeleeDamage:   40,
		MeleeCooldown: 800 * time.Millisecond,
	},
	{
		ID:           "launcher",
		Name:         "Arc Launcher",
		Damage:       55,
		MagazineSize: 4,
		Pellets:      1,
		Spread:       0.008,
		SprintSpread: 0.03,
		MaxRange:     80,
		Cooldown:     900 * time.Millisecond,
		ReloadTime:   2600 * time.Millisecond,

		ProjectileSpeed:   28,
		ProjectileGravity: 9.8,

		MeleeRange:    1.8,
		MeleeDamage:   40,
		MeleeCooldown: 800 * time.Millisecond,
	},
}
