package game

// MapConfig is the static per-room configuration: which asset the clients
// load, where players spawn, and where the summon zone sits. Not mutable
// at runtime.
type MapConfig struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Spawn        Vec3    `json:"spawn"`
	SpawnFacing  Quat    `json:"spawnFacing"`
	GatherCenter Vec3    `json:"gatherCenter"`
	GatherRadius float64 `json:"gatherRadius"`
}

// Maps is the fixed room table. Order matters: the vote tiebreak falls
// back to the first registered option.
var Maps = []MapConfig{
	{
		ID:           "snowy",
		Name:         "Snowy Village",
		Spawn:        Vec3{0, 0, 8},
		SpawnFacing:  Quat{0, 0, 0, 1},
		GatherCenter: Vec3{0, 0, -14},
		GatherRadius: 6,
	},
	{
		ID:           "cabin",
		Name:         "The Cabin",
		Spawn:        Vec3{-3, 0, 12},
		SpawnFacing:  Quat{0, 1, 0, 0},
		GatherCenter: Vec3{5, 0, -9},
		GatherRadius: 6,
	},
	{
		ID:           "forest",
		Name:         "Frozen Forest",
		Spawn:        Vec3{10, 0, 10},
		SpawnFacing:  Quat{0, 0.707, 0, 0.707},
		GatherCenter: Vec3{-8, 0, -8},
		GatherRadius: 7,
	},
}

// MapByID looks a map up in the static table.
func MapByID(id string) (MapConfig, bool) {
	for _, m := range Maps {
		if m.ID == id {
			return m, true
		}
	}
	return MapConfig{}, false
}

// MapIDs returns the table's ids in registration order, used as the vote
// option list.
func MapIDs() []string {
	ids := make([]string, 0, len(Maps))
	for _, m := range Maps {
		ids = append(ids, m.ID)
	}
	return ids
}
