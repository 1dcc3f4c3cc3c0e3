package game

import "time"

type GatherStatus string

const (
	GatherIdle      GatherStatus = "idle"
	GatherCountdown GatherStatus = "countdown"
)

// GatherRules tunes the summon-zone coordinator: how long all living
// players must hold the zone, and how much boundary jitter is forgiven
// before the countdown resets.
type GatherRules struct {
	Countdown time.Duration
	Grace     time.Duration
}

// GatherState is derived every tick from current player positions. It is
// never persisted; GraceDeadline is internal bookkeeping for the
// tolerance window after someone steps out.
type GatherState struct {
	Status        GatherStatus
	CountdownEnd  time.Time
	GraceDeadline time.Time
	Inside        int
	Alive         int
	Total         int
}

// Observe advances the coordinator with this tick's occupancy counts and
// reports whether the countdown completed. Firing resets the state to
// idle so a round start is requested exactly once per completed hold.
func (g GatherState) Observe(rules GatherRules, now time.Time, inside, alive, total int) (GatherState, bool) {
	next := g
	next.Inside = inside
	next.Alive = alive
	next.Total = total

	allIn := alive > 0 && inside >= alive

	switch g.Status {
	case GatherIdle:
		if allIn {
			next.Status = GatherCountdown
			next.CountdownEnd = now.Add(rules.Countdown)
			next.GraceDeadline = time.Time{}
		}
		return next, false

	case GatherCountdown:
		if allIn {
			next.GraceDeadline = time.Time{}
		} else if next.GraceDeadline.IsZero() {
			next.GraceDeadline = now.Add(rules.Grace)
		} else if now.After(next.GraceDeadline) {
			next.Status = GatherIdle
			next.CountdownEnd = time.Time{}
			next.GraceDeadline = time.Time{}
			return next, false
		}

		if !now.Before(next.CountdownEnd) {
			next.Status = GatherIdle
			next.CountdownEnd = time.Time{}
			next.GraceDeadline = time.Time{}
			return next, true
		}
		return next, false
	}

	return next, false
}

// CountInside tallies living players within the zone, for feeding Observe.
func CountInside(players []Player, center Vec3, radius float64) (inside, alive, total int) {
	total = len(players)
	for _, p := range players {
		if !p.Alive() {
			continue
		}
		alive++
		if HorizontalDistance(p.Position, center) <= radius {
			inside++
		}
	}
	return inside, alive, total
}
