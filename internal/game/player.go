package game

import "math"

// Vec3 is a world position as [x, y, z].
type Vec3 [3]float64

// Quat is an orientation quaternion as [x, y, z, w].
type Quat [4]float64

// HorizontalDistance ignores the y axis; attack range and gather zones
// only care about the ground plane.
func HorizontalDistance(a, b Vec3) float64 {
	dx := a[0] - b[0]
	dz := a[2] - b[2]
	return math.Sqrt(dx*dx + dz*dz)
}

// Player is one connected participant's record. Position and Rotation are
// always written together from the same move message.
type Player struct {
	ID             string `json:"id"`
	Nickname       string `json:"nickname"`
	Position       Vec3   `json:"position"`
	Rotation       Quat   `json:"rotation"`
	IsMoving       bool   `json:"isMoving"`
	IsRunning      bool   `json:"isRunning"`
	IsDead         bool   `json:"isDead"`
	IsInfected     bool   `json:"isInfected"`
	CharacterIndex int    `json:"characterIndex"`
}

// Alive reports whether the player still counts toward gather and
// survivor checks.
func (p Player) Alive() bool { return !p.IsDead }

// Survivor reports whether the player is a living non-infected participant.
func (p Player) Survivor() bool { return !p.IsInfected && !p.IsDead }
