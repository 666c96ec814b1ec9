package game

// nominationsBy lists today's nominees of nominator, including an open vote.
func (g *GameState) nominationsBy(nominator int) []int {
	var out []int
	for _, r := range g.DailyNominations {
		if r.Day == g.RoundInfo.DayCount && r.NominatorSeatID == nominator {
			out = append(out, r.NomineeSeatID)
		}
	}
	if g.Voting != nil && g.Voting.NominatorSeatID == nominator {
		out = append(out, g.Voting.NomineeSeatID)
	}
	return out
}

func (g *GameState) nominatedToday(nominee int) bool {
	for _, r := range g.DailyNominations {
		if r.Day == g.RoundInfo.DayCount && r.NomineeSeatID == nominee {
			return true
		}
	}
	return g.Voting != nil && g.Voting.NomineeSeatID == nominee
}

// NominationQuota is how many nominations the seat may make per day.
func (g *GameState) NominationQuota(seatID int) int {
	s, err := g.seat(seatID)
	if err != nil {
		return 0
	}
	script, err := g.Script()
	if err != nil {
		return 1
	}
	if r, ok := script.Role(s.Role.RealRoleID); ok && r.ExtraNomination {
		return 2
	}
	return 1
}

// CheckLocalEligibility evaluates a nomination against the current state
// only, so it can run on a client without a server round-trip.
func (g *GameState) CheckLocalEligibility(nominatorSeatID, nomineeSeatID int) error {
	if !g.Phase.IsDaytime() || g.GameOver != nil {
		return &NominationError{Reason: ReasonNotDay}
	}
	if g.executionDoneToday() {
		return &NominationError{Reason: ReasonExecutionDone}
	}
	nominator, err := g.seat(nominatorSeatID)
	if err != nil {
		return &NominationError{Reason: ReasonSeatOutOfRange}
	}
	nominee, err := g.seat(nomineeSeatID)
	if err != nil {
		return &NominationError{Reason: ReasonSeatOutOfRange}
	}
	if !nominator.Occupied() {
		return &NominationError{Reason: ReasonNominatorEmpty}
	}
	if nominator.IsDead {
		return &NominationError{Reason: ReasonNominatorDead}
	}
	if prev := g.nominationsBy(nominatorSeatID); len(prev) >= g.NominationQuota(nominatorSeatID) {
		last := prev[len(prev)-1]
		return &NominationError{Reason: ReasonQuotaExceeded, PreviousNominee: &last}
	}
	if !nominee.Occupied() {
		return &NominationError{Reason: ReasonNomineeEmpty}
	}
	if nominee.IsDead {
		return &NominationError{Reason: ReasonNomineeDead}
	}
	if g.nominatedToday(nomineeSeatID) {
		return &NominationError{Reason: ReasonAlreadyNominated}
	}
	return nil
}

// GateEligibility applies the automation policy to an eligibility result.
// Only FULL_AUTO fails closed; the other levels trust the storyteller and
// let the action through. A nil checkErr always passes.
func GateEligibility(level RuleAutomationLevel, checkErr error) error {
	if checkErr == nil || level != AutomationFullAuto {
		return nil
	}
	return checkErr
}

// Nominate checks eligibility under the room's automation level and opens a
// vote on the nominee.
func (g *GameState) Nominate(nominatorSeatID, nomineeSeatID int) (string, error) {
	checkErr := g.CheckLocalEligibility(nominatorSeatID, nomineeSeatID)
	if err := GateEligibility(g.RuleAutomationLevel, checkErr); err != nil {
		return "", err
	}
	if _, err := g.seat(nominatorSeatID); err != nil {
		return "", err
	}
	line, err := g.startVote(nominatorSeatID, nomineeSeatID)
	if err != nil {
		return "", err
	}
	g.RoundInfo.NominationCount++
	if checkErr != nil {
		line += " (allowed by storyteller: " + checkErr.Error() + ")"
	}
	return line, nil
}
