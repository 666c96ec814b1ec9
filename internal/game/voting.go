package game

import (
	"cmp"
	"slices"
	"strconv"
)

const noSeat = -1

type SeatVote struct {
	SeatID int  `json:"seatId"`
	Up     bool `json:"up"`
}

// VotingState is the single open vote of a room. NominatorSeatID is -1 when
// the storyteller opened the vote directly.
type VotingState struct {
	NominatorSeatID int        `json:"nominatorSeatId"`
	NomineeSeatID   int        `json:"nomineeSeatId"`
	Open            bool       `json:"open"`
	Votes           []SeatVote `json:"votes"`
}

// NominationRecord is the immutable outcome of one closed vote.
type NominationRecord struct {
	Day             int  `json:"day"`
	NominatorSeatID int  `json:"nominatorSeatId"`
	NomineeSeatID   int  `json:"nomineeSeatId"`
	Seconded        bool `json:"seconded"`
	VoteCount       int  `json:"voteCount"`
	Executed        bool `json:"executed"`
}

// StartVote opens a vote on nominee.
func (g *GameState) StartVote(nomineeSeatID int) (string, error) {
	return g.startVote(noSeat, nomineeSeatID)
}

func (g *GameState) startVote(nominatorSeatID, nomineeSeatID int) (string, error) {
	if g.GameOver != nil {
		return "", ErrGameOver
	}
	if g.Voting != nil {
		return "", ErrVoteAlreadyOpen
	}
	nominee, err := g.seat(nomineeSeatID)
	if err != nil {
		return "", err
	}
	if !nominee.Occupied() {
		return "", ErrSeatUnoccupied
	}
	for i := range g.Seats {
		g.Seats[i].VoteLocked = false
		g.Seats[i].HandRaised = false
	}
	g.Voting = &VotingState{
		NominatorSeatID: nominatorSeatID,
		NomineeSeatID:   nomineeSeatID,
		Open:            true,
	}
	line := "Vote started on " + seatLabel(nomineeSeatID)
	if nominatorSeatID != noSeat {
		line = seatLabel(nominatorSeatID) + " nominated " + seatLabel(nomineeSeatID)
	}
	return g.system(line), nil
}

// CastVote records a seat's hand for the open vote. Dead seats may only vote
// up while they still hold a ghost vote; the ghost vote is spent on close.
func (g *GameState) CastVote(seatID int, up bool) error {
	if g.Voting == nil || !g.Voting.Open {
		return ErrVoteNotOpen
	}
	s, err := g.seat(seatID)
	if err != nil {
		return err
	}
	if !s.Occupied() {
		return ErrSeatUnoccupied
	}
	if s.VoteLocked {
		return ErrVoteLocked
	}
	if up && s.IsDead && !s.HasGhostVote {
		return ErrNoGhostVote
	}

	votes := g.Voting.Votes
	i, found := slices.BinarySearchFunc(votes, seatID, func(v SeatVote, id int) int {
		return cmp.Compare(v.SeatID, id)
	})
	if found {
		votes[i].Up = up
	} else {
		votes = slices.Insert(votes, i, SeatVote{SeatID: seatID, Up: up})
	}
	g.Voting.Votes = votes
	return nil
}

// LockVote freezes a seat's vote, as when the clock hand passes it.
func (g *GameState) LockVote(seatID int) (string, error) {
	if g.Voting == nil || !g.Voting.Open {
		return "", ErrVoteNotOpen
	}
	s, err := g.seat(seatID)
	if err != nil {
		return "", err
	}
	s.VoteLocked = true
	return seatLabel(seatID) + " vote locked", nil
}

// CloseVote tallies and tears down the open vote. With no open vote it is a
// no-op. If the tally reaches half the living players and nobody has been
// executed today, the nominee is executed.
func (g *GameState) CloseVote() (string, error) {
	v := g.Voting
	if v == nil {
		return "", nil
	}

	threshold := (g.LivingCount() + 1) / 2
	count := 0
	for _, sv := range v.Votes {
		if !sv.Up {
			continue
		}
		s := &g.Seats[sv.SeatID]
		if s.IsDead {
			if !s.HasGhostVote {
				continue
			}
			s.HasGhostVote = false
		}
		count++
	}

	executed := count > 0 && count >= threshold &&
		g.Phase.IsDaytime() && !g.executionDoneToday()

	g.DailyNominations = append(g.DailyNominations, NominationRecord{
		Day:             g.RoundInfo.DayCount,
		NominatorSeatID: v.NominatorSeatID,
		NomineeSeatID:   v.NomineeSeatID,
		Seconded:        count > 0,
		VoteCount:       count,
		Executed:        executed,
	})
	g.Voting = nil
	for i := range g.Seats {
		g.Seats[i].HandRaised = false
		g.Seats[i].VoteLocked = false
	}

	line := g.system("Vote on " + seatLabel(v.NomineeSeatID) + " closed with " + strconv.Itoa(count) + " votes")
	if executed {
		g.kill(&g.Seats[v.NomineeSeatID])
		g.RoundInfo.ExecutedDay = g.RoundInfo.DayCount
		line = g.system(seatLabel(v.NomineeSeatID) + " has been executed")
	}
	return line, nil
}

// closeVoteSilently drops an open vote without recording an outcome.
func (g *GameState) closeVoteSilently() {
	g.Voting = nil
}

func (g *GameState) executionDoneToday() bool {
	return g.RoundInfo.DayCount > 0 && g.RoundInfo.ExecutedDay == g.RoundInfo.DayCount
}
