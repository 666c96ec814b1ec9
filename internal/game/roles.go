package game

import (
	"math/rand/v2"
)

const (
	minPlayers = 5
	maxPlayers = 15
)

// Composition is the number of roles per team for a game.
type Composition struct {
	Townsfolk int `json:"townsfolk"`
	Outsiders int `json:"outsiders"`
	Minions   int `json:"minions"`
	Demons    int `json:"demons"`
}

func (c Composition) Total() int {
	return c.Townsfolk + c.Outsiders + c.Minions + c.Demons
}

// distribution is the standard team table indexed by player count.
var distribution = map[int]Composition{
	5:  {3, 0, 1, 1},
	6:  {3, 1, 1, 1},
	7:  {5, 0, 1, 1},
	8:  {5, 1, 1, 1},
	9:  {5, 2, 1, 1},
	10: {7, 0, 2, 1},
	11: {7, 1, 2, 1},
	12: {7, 2, 2, 1},
	13: {9, 0, 3, 1},
	14: {9, 1, 3, 1},
	15: {9, 2, 3, 1},
}

// BaseComposition returns the standard team counts for seatCount players.
func BaseComposition(seatCount int) (Composition, error) {
	c, ok := distribution[seatCount]
	if !ok {
		return Composition{}, &UnsupportedSeatCountError{Count: seatCount}
	}
	return c, nil
}

// AssignComposition picks seatCount unique roles from the script. Minions and
// demons are drawn first so that setup modifiers such as the Baron's extra
// outsiders can adjust the good team before it is drawn. The result is shuffled.
func AssignComposition(script Script, seatCount int, rng *rand.Rand) ([]string, Composition, error) {
	comp, err := BaseComposition(seatCount)
	if err != nil {
		return nil, Composition{}, err
	}

	pools := map[Team][]Role{}
	for _, r := range script.Roles {
		pools[r.Team] = append(pools[r.Team], r)
	}
	for _, team := range []Team{TeamTownsfolk, TeamOutsider, TeamMinion, TeamDemon} {
		p := pools[team]
		rng.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })
	}

	var picked []string
	take := func(team Team, n int) error {
		if n > len(pools[team]) {
			return &CompositionError{Team: team, Want: n, Have: len(pools[team])}
		}
		for _, r := range pools[team][:n] {
			picked = append(picked, r.ID)
		}
		return nil
	}

	if err := take(TeamDemon, comp.Demons); err != nil {
		return nil, Composition{}, err
	}
	if err := take(TeamMinion, comp.Minions); err != nil {
		return nil, Composition{}, err
	}
	for _, r := range pools[TeamMinion][:comp.Minions] {
		comp = comp.shiftOutsiders(r.OutsiderDelta, len(pools[TeamOutsider]))
	}
	for _, r := range pools[TeamDemon][:comp.Demons] {
		comp = comp.shiftOutsiders(r.OutsiderDelta, len(pools[TeamOutsider]))
	}
	if err := take(TeamOutsider, comp.Outsiders); err != nil {
		return nil, Composition{}, err
	}
	if err := take(TeamTownsfolk, comp.Townsfolk); err != nil {
		return nil, Composition{}, err
	}

	rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	return picked, comp, nil
}

// shiftOutsiders moves up to delta townsfolk slots into outsider slots,
// bounded by the outsiders available.
func (c Composition) shiftOutsiders(delta, available int) Composition {
	if delta <= 0 {
		return c
	}
	if room := available - c.Outsiders; delta > room {
		delta = room
	}
	if delta > c.Townsfolk {
		delta = c.Townsfolk
	}
	if delta < 0 {
		return c
	}
	c.Outsiders += delta
	c.Townsfolk -= delta
	return c
}

// AssignRoleToSeat gives a seat an explicit role, or clears it when roleID is
// empty. All three role views are set identically.
func (g *GameState) AssignRoleToSeat(seatID int, roleID string) (string, error) {
	s, err := g.seat(seatID)
	if err != nil {
		return "", err
	}
	if roleID != "" {
		script, err := g.Script()
		if err != nil {
			return "", err
		}
		if _, ok := script.Role(roleID); !ok {
			return "", ErrUnknownRole
		}
	}
	s.Role = RoleView{RoleID: roleID, RealRoleID: roleID, SeenRoleID: roleID}
	if roleID == "" {
		return "role cleared from " + seatLabel(seatID), nil
	}
	return seatLabel(seatID) + " assigned " + roleID, nil
}

// DealComposition computes a composition for every seat and assigns it.
func (g *GameState) DealComposition(rng *rand.Rand) (string, error) {
	script, err := g.Script()
	if err != nil {
		return "", err
	}
	roles, _, err := AssignComposition(script, len(g.Seats), rng)
	if err != nil {
		return "", err
	}
	for i, id := range roles {
		g.Seats[i].Role = RoleView{RoleID: id, RealRoleID: id, SeenRoleID: id}
	}
	return "roles dealt to " + seatCountLabel(len(roles)), nil
}
