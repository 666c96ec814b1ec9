package game

import (
	"slices"
	"strings"
)

// RoleView holds the three views of a seat's role.
//
//   - RoleID is the role the storyteller assigned.
//   - RealRoleID is the ground truth used for rules.
//   - SeenRoleID is what the player was told.
//
// Assignment always sets all three to the same value. Deception effects
// (a drunk or lunatic believing they are someone else) diverge SeenRoleID
// from RealRoleID through Perceive and nowhere else.
type RoleView struct {
	RoleID     string `json:"roleId"`
	RealRoleID string `json:"realRoleId"`
	SeenRoleID string `json:"seenRoleId"`
}

// Acting is the role a seat is woken for at night.
func (v RoleView) Acting() string {
	switch {
	case v.SeenRoleID != "":
		return v.SeenRoleID
	case v.RealRoleID != "":
		return v.RealRoleID
	}
	return v.RoleID
}

// Diverged reports whether the player's perceived role differs from the truth.
func (v RoleView) Diverged() bool {
	return v.SeenRoleID != v.RealRoleID
}

type Reminder struct {
	ID   string `json:"id"`
	Icon string `json:"icon,omitempty"`
	Text string `json:"text"`
}

type Seat struct {
	ID           int        `json:"id"`
	UserID       string     `json:"userId,omitempty"`
	IsVirtual    bool       `json:"isVirtual"`
	IsDead       bool       `json:"isDead"`
	HasGhostVote bool       `json:"hasGhostVote"`
	EverDied     bool       `json:"everDied"`
	Role         RoleView   `json:"role"`
	Statuses     []string   `json:"statuses"`
	Reminders    []Reminder `json:"reminders"`
	VoteLocked   bool       `json:"voteLocked"`
	HandRaised   bool       `json:"handRaised"`
}

func (s Seat) Occupied() bool {
	return s.UserID != ""
}

func (s Seat) HasStatus(tag string) bool {
	_, found := slices.BinarySearch(s.Statuses, tag)
	return found
}

// ToggleDead flips the seat's death flag. A ghost vote is granted the first
// time a seat dies and never again.
func (g *GameState) ToggleDead(seatID int) (string, error) {
	s, err := g.seat(seatID)
	if err != nil {
		return "", err
	}
	if s.IsDead {
		s.IsDead = false
		return g.system(seatLabel(seatID) + " has been revived"), nil
	}
	g.kill(s)
	return g.system(seatLabel(seatID) + " has died"), nil
}

func (g *GameState) kill(s *Seat) {
	s.IsDead = true
	if !s.EverDied {
		s.EverDied = true
		s.HasGhostVote = true
	}
}

// ToggleStatus adds tag to the seat's status set, or removes it if present.
// Statuses are storyteller knowledge, so no public message is logged.
func (g *GameState) ToggleStatus(seatID int, tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", ErrEmptyStatus
	}
	s, err := g.seat(seatID)
	if err != nil {
		return "", err
	}
	i, found := slices.BinarySearch(s.Statuses, tag)
	if found {
		s.Statuses = slices.Delete(s.Statuses, i, i+1)
		return seatLabel(seatID) + " is no longer " + tag, nil
	}
	s.Statuses = slices.Insert(s.Statuses, i, tag)
	return seatLabel(seatID) + " is now " + tag, nil
}

// AddReminder attaches a reminder token to a seat. Text is free-form and not
// required to be unique.
func (g *GameState) AddReminder(seatID int, id, icon, text string) (string, error) {
	s, err := g.seat(seatID)
	if err != nil {
		return "", err
	}
	s.Reminders = append(s.Reminders, Reminder{ID: id, Icon: icon, Text: text})
	return "reminder added to " + seatLabel(seatID), nil
}

// UpdateReminder replaces the icon and text of an existing reminder.
func (g *GameState) UpdateReminder(seatID int, id, icon, text string) (string, error) {
	s, err := g.seat(seatID)
	if err != nil {
		return "", err
	}
	for i := range s.Reminders {
		if s.Reminders[i].ID == id {
			s.Reminders[i].Icon = icon
			s.Reminders[i].Text = text
			return "reminder updated on " + seatLabel(seatID), nil
		}
	}
	return "", ErrReminderNotFound
}

func (g *GameState) RemoveReminder(seatID int, id string) (string, error) {
	s, err := g.seat(seatID)
	if err != nil {
		return "", err
	}
	for i := range s.Reminders {
		if s.Reminders[i].ID == id {
			s.Reminders = slices.Delete(s.Reminders, i, i+1)
			return "reminder removed from " + seatLabel(seatID), nil
		}
	}
	return "", ErrReminderNotFound
}

// SetHand raises or lowers the seat's hand. While a vote is open this also
// casts or withdraws the seat's vote.
func (g *GameState) SetHand(seatID int, raised bool) (string, error) {
	s, err := g.seat(seatID)
	if err != nil {
		return "", err
	}
	if g.Voting != nil && g.Voting.Open {
		if err := g.CastVote(seatID, raised); err != nil {
			return "", err
		}
	}
	s.HandRaised = raised
	if raised {
		return seatLabel(seatID) + " raised their hand", nil
	}
	return seatLabel(seatID) + " lowered their hand", nil
}

// Perceive makes a seat believe it holds roleID while its true role stays
// the same. Passing an empty roleID restores the truthful view.
func (g *GameState) Perceive(seatID int, roleID string) (string, error) {
	s, err := g.seat(seatID)
	if err != nil {
		return "", err
	}
	if s.Role.RealRoleID == "" {
		return "", ErrNoRole
	}
	if roleID == "" {
		s.Role.SeenRoleID = s.Role.RealRoleID
		return seatLabel(seatID) + " sees their true role", nil
	}
	script, err := g.Script()
	if err != nil {
		return "", err
	}
	if _, ok := script.Role(roleID); !ok {
		return "", ErrUnknownRole
	}
	s.Role.SeenRoleID = roleID
	return seatLabel(seatID) + " now believes they are " + roleID, nil
}
