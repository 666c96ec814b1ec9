package game

import "slices"

type Team string

const (
	TeamTownsfolk Team = "townsfolk"
	TeamOutsider  Team = "outsider"
	TeamMinion    Team = "minion"
	TeamDemon     Team = "demon"
)

// Role is one character of a script. FirstNight and OtherNight are positions
// in the canonical night order; 0 means the role does not wake.
type Role struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Team            Team   `json:"team"`
	FirstNight      int    `json:"firstNight"`
	OtherNight      int    `json:"otherNight"`
	ExtraNomination bool   `json:"extraNomination,omitempty"`
	WakesWhenDead   bool   `json:"wakesWhenDead,omitempty"`
	// OutsiderDelta shifts townsfolk into outsiders when the role is in play.
	OutsiderDelta int `json:"outsiderDelta,omitempty"`
}

type Script struct {
	ID    string
	Name  string
	Roles []Role
}

const TroubleBrewing = "trouble-brewing"

var troubleBrewing = Script{
	ID:   TroubleBrewing,
	Name: "Trouble Brewing",
	Roles: []Role{
		{ID: "washerwoman", Name: "Washerwoman", Team: TeamTownsfolk, FirstNight: 32},
		{ID: "librarian", Name: "Librarian", Team: TeamTownsfolk, FirstNight: 33},
		{ID: "investigator", Name: "Investigator", Team: TeamTownsfolk, FirstNight: 34},
		{ID: "chef", Name: "Chef", Team: TeamTownsfolk, FirstNight: 35},
		{ID: "empath", Name: "Empath", Team: TeamTownsfolk, FirstNight: 36, OtherNight: 53},
		{ID: "fortuneteller", Name: "Fortune Teller", Team: TeamTownsfolk, FirstNight: 37, OtherNight: 54},
		{ID: "undertaker", Name: "Undertaker", Team: TeamTownsfolk, OtherNight: 52},
		{ID: "monk", Name: "Monk", Team: TeamTownsfolk, OtherNight: 12},
		{ID: "ravenkeeper", Name: "Ravenkeeper", Team: TeamTownsfolk, OtherNight: 42, WakesWhenDead: true},
		{ID: "virgin", Name: "Virgin", Team: TeamTownsfolk},
		{ID: "slayer", Name: "Slayer", Team: TeamTownsfolk},
		{ID: "soldier", Name: "Soldier", Team: TeamTownsfolk},
		{ID: "mayor", Name: "Mayor", Team: TeamTownsfolk},
		{ID: "butler", Name: "Butler", Team: TeamOutsider, FirstNight: 38, OtherNight: 55},
		{ID: "drunk", Name: "Drunk", Team: TeamOutsider},
		{ID: "recluse", Name: "Recluse", Team: TeamOutsider},
		{ID: "saint", Name: "Saint", Team: TeamOutsider},
		{ID: "poisoner", Name: "Poisoner", Team: TeamMinion, FirstNight: 17, OtherNight: 7},
		{ID: "spy", Name: "Spy", Team: TeamMinion, FirstNight: 48, OtherNight: 68},
		{ID: "scarletwoman", Name: "Scarlet Woman", Team: TeamMinion, OtherNight: 19},
		{ID: "baron", Name: "Baron", Team: TeamMinion, OutsiderDelta: 2},
		{ID: "imp", Name: "Imp", Team: TeamDemon, OtherNight: 24},
	},
}

var builtinScripts = map[string]Script{
	TroubleBrewing: troubleBrewing,
}

// LookupScript returns a built-in script by id.
func LookupScript(id string) (Script, error) {
	s, ok := builtinScripts[id]
	if !ok {
		return Script{}, ErrUnknownScript
	}
	return s, nil
}

// Role returns the role with the given id.
func (s Script) Role(id string) (Role, bool) {
	i := slices.IndexFunc(s.Roles, func(r Role) bool { return r.ID == id })
	if i < 0 {
		return Role{}, false
	}
	return s.Roles[i], true
}

// WithOverrides returns a copy of s where custom roles replace built-in roles
// of the same id and new ids are appended.
func (s Script) WithOverrides(custom []Role) Script {
	if len(custom) == 0 {
		return s
	}
	out := Script{ID: s.ID, Name: s.Name, Roles: slices.Clone(s.Roles)}
	for _, c := range custom {
		if i := slices.IndexFunc(out.Roles, func(r Role) bool { return r.ID == c.ID }); i >= 0 {
			out.Roles[i] = c
			continue
		}
		out.Roles = append(out.Roles, c)
	}
	return out
}

// Script resolves the room's script including custom role overrides. Rooms
// with an unknown script id and custom roles use the custom roles alone.
func (g *GameState) Script() (Script, error) {
	base, err := LookupScript(g.ScriptID)
	if err != nil {
		if len(g.CustomRoles) == 0 {
			return Script{}, err
		}
		base = Script{ID: g.ScriptID, Name: g.ScriptID}
	}
	return base.WithOverrides(g.CustomRoles), nil
}
