package game

import "slices"

// Clone returns a deep copy that shares no mutable memory with g.
func (g *GameState) Clone() *GameState {
	if g == nil {
		return nil
	}
	c := *g

	c.Seats = make([]Seat, len(g.Seats))
	for i, s := range g.Seats {
		s.Statuses = slices.Clone(s.Statuses)
		s.Reminders = slices.Clone(s.Reminders)
		c.Seats[i] = s
	}
	c.NightQueue = slices.Clone(g.NightQueue)
	c.DailyNominations = slices.Clone(g.DailyNominations)
	c.CustomRoles = slices.Clone(g.CustomRoles)

	if g.Voting != nil {
		v := *g.Voting
		v.Votes = slices.Clone(g.Voting.Votes)
		c.Voting = &v
	}
	if g.GameOver != nil {
		over := *g.GameOver
		c.GameOver = &over
	}

	c.Messages = make([]Message, len(g.Messages))
	for i, m := range g.Messages {
		m.FromSeatID = cloneInt(m.FromSeatID)
		m.ToSeatID = cloneInt(m.ToSeatID)
		c.Messages[i] = m
	}
	if g.Messages == nil {
		c.Messages = nil
	}

	c.NightActions = make([]NightAction, len(g.NightActions))
	for i, a := range g.NightActions {
		a.Payload = clonePayload(a.Payload)
		c.NightActions[i] = a
	}
	if g.NightActions == nil {
		c.NightActions = nil
	}
	return &c
}

// clonePayload copies a decoded JSON object, including nested objects and
// arrays.
func clonePayload(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneJSONValue(v)
	}
	return out
}

func cloneJSONValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return clonePayload(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneJSONValue(e)
		}
		return out
	}
	return v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
