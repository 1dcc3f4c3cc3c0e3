package game

import "time"

// AttackRules tunes the infected's attack: the animation clip length, the
// fraction of the clip after which the hit check opens, and the
// horizontal reach.
type AttackRules struct {
	ClipDuration time.Duration
	HitFraction  float64
	Range        float64
}

// Attack tracks one windup of the infected's attack. Applied guards
// against killing more than once per windup; it stays false on a whiff
// so a survivor stepping into range late in the clip can still be hit.
type Attack struct {
	StartedAt time.Time
	Applied   bool
}

// Active reports whether the windup is still running.
func (a *Attack) Active(rules AttackRules, now time.Time) bool {
	return a != nil && now.Before(a.StartedAt.Add(rules.ClipDuration))
}

// Resolve checks the attack against the current player set and returns
// the victim's id if the hit lands this tick. The hit window opens once
// HitFraction of the clip has elapsed; the nearest living survivor
// within range is killed, at most once per windup.
func (a *Attack) Resolve(rules AttackRules, now time.Time, infected Player, players []Player) (string, bool) {
	if a == nil || a.Applied {
		return "", false
	}
	open := a.StartedAt.Add(time.Duration(float64(rules.ClipDuration) * rules.HitFraction))
	if now.Before(open) || !a.Active(rules, now) {
		return "", false
	}

	victim := ""
	closest := rules.Range
	for _, p := range players {
		if !p.Survivor() || p.ID == infected.ID {
			continue
		}
		if d := HorizontalDistance(infected.Position, p.Position); d <= closest {
			victim = p.ID
			closest = d
		}
	}
	if victim == "" {
		return "", false
	}
	a.Applied = true
	return victim, true
}
