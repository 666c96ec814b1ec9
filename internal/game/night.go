package game

import (
	"cmp"
	"slices"
)

// NightQueueEntry says which seat wakes for which role, at what position of
// the canonical night order.
type NightQueueEntry struct {
	SeatID int    `json:"seatId"`
	RoleID string `json:"roleId"`
	Order  int    `json:"order"`
}

// BuildNightQueue orders the waking roles of the given night. The order is a
// total order on (night order, seat id) so rebuilding is deterministic.
func (g *GameState) BuildNightQueue(night int) ([]NightQueueEntry, error) {
	script, err := g.Script()
	if err != nil {
		return nil, err
	}

	var queue []NightQueueEntry
	for _, s := range g.Seats {
		roleID := s.Role.Acting()
		if roleID == "" {
			continue
		}
		role, ok := script.Role(roleID)
		if !ok {
			continue
		}
		if s.IsDead && !role.WakesWhenDead {
			continue
		}
		order := role.OtherNight
		if night <= 1 {
			order = role.FirstNight
		}
		if order <= 0 {
			continue
		}
		queue = append(queue, NightQueueEntry{SeatID: s.ID, RoleID: roleID, Order: order})
	}

	slices.SortFunc(queue, func(a, b NightQueueEntry) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.SeatID, b.SeatID)
	})
	return queue, nil
}

// CurrentNightEntry returns the entry under the cursor.
func (g *GameState) CurrentNightEntry() (NightQueueEntry, bool) {
	if g.Phase != PhaseNight || g.NightCurrentIndex < 0 || g.NightCurrentIndex >= len(g.NightQueue) {
		return NightQueueEntry{}, false
	}
	return g.NightQueue[g.NightCurrentIndex], true
}

// NightNext advances the cursor. Stepping past the last entry ends the night.
func (g *GameState) NightNext() (string, error) {
	if g.Phase != PhaseNight {
		return "", ErrNotNight
	}
	if g.NightCurrentIndex+1 >= len(g.NightQueue) {
		return g.TransitionPhase(PhaseDay)
	}
	g.NightCurrentIndex++
	e := g.NightQueue[g.NightCurrentIndex]
	return "now waking " + e.RoleID + " (" + seatLabel(e.SeatID) + ")", nil
}

// NightPrev moves the cursor back, never below the first entry.
func (g *GameState) NightPrev() (string, error) {
	if g.Phase != PhaseNight {
		return "", ErrNotNight
	}
	if g.NightCurrentIndex > 0 {
		g.NightCurrentIndex--
	}
	e, ok := g.CurrentNightEntry()
	if !ok {
		return "night queue is empty", nil
	}
	return "back to " + e.RoleID + " (" + seatLabel(e.SeatID) + ")", nil
}

// RecordNightAction stores a player's night choice for the current night.
// roleID, when given, must match the role the seat acts as.
func (g *GameState) RecordNightAction(seatID int, roleID string, payload map[string]any) (string, error) {
	if g.Phase != PhaseNight {
		return "", ErrNotNight
	}
	s, err := g.seat(seatID)
	if err != nil {
		return "", err
	}
	acting := s.Role.Acting()
	if roleID == "" {
		roleID = acting
	}
	if roleID != acting {
		return "", ErrRoleMismatch
	}
	g.NightActions = append(g.NightActions, NightAction{
		Night:   g.RoundInfo.NightCount,
		SeatID:  seatID,
		RoleID:  roleID,
		Payload: payload,
	})
	return seatLabel(seatID) + " submitted a night action", nil
}
