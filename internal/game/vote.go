package game

// VoteTally accumulates map votes during VOTING. One vote per connection,
// last vote overwrites. Not safe for concurrent use; the owning room's
// loop is the only writer.
type VoteTally struct {
	options []string
	votes   map[string]string
}

func NewVoteTally(options []string) *VoteTally {
	return &VoteTally{
		options: options,
		votes:   make(map[string]string),
	}
}

// Cast records a vote. Unknown options are rejected so a malformed vote
// can never invent a map.
func (t *VoteTally) Cast(connID, optionID string) bool {
	for _, opt := range t.options {
		if opt == optionID {
			t.votes[connID] = optionID
			return true
		}
	}
	return false
}

// Remove drops a connection's vote, used on disconnect.
func (t *VoteTally) Remove(connID string) {
	delete(t.votes, connID)
}

func (t *VoteTally) Count() int { return len(t.votes) }

// Winner returns the plurality option. Ties break toward the earliest
// registered option; with no votes at all the first option wins.
func (t *VoteTally) Winner() string {
	if len(t.options) == 0 {
		return ""
	}
	counts := make(map[string]int)
	for _, opt := range t.votes {
		counts[opt]++
	}
	winner := t.options[0]
	best := counts[winner]
	for _, opt := range t.options[1:] {
		if counts[opt] > best {
			winner = opt
			best = counts[opt]
		}
	}
	return winner
}

// Reset clears all votes for the next round.
func (t *VoteTally) Reset() {
	clear(t.votes)
}
