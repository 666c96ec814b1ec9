package game

import "strconv"

var transitions = map[Phase][]Phase{
	PhaseSetup:      {PhaseNight},
	PhaseNight:      {PhaseDay},
	PhaseDay:        {PhaseNomination, PhaseNight, PhaseFinalDay},
	PhaseNomination: {PhaseDay, PhaseNight, PhaseFinalDay},
	PhaseFinalDay:   {PhaseNomination, PhaseNight},
}

// CanTransition reports whether to is reachable from from in one step.
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// TransitionPhase moves the game to phase to and runs its entry effects.
// Requesting the current phase is a no-op and returns an empty line.
func (g *GameState) TransitionPhase(to Phase) (string, error) {
	if g.Phase == to {
		return "", nil
	}
	if g.GameOver != nil || !CanTransition(g.Phase, to) {
		return "", &PhaseTransitionError{From: g.Phase, To: to}
	}

	from := g.Phase
	switch to {
	case PhaseNight:
		if err := g.enterNight(); err != nil {
			return "", err
		}
	case PhaseDay:
		if from == PhaseNight {
			g.enterDay()
		}
	}
	g.Phase = to
	return g.system(transitionLine(from, to, g.RoundInfo)), nil
}

func (g *GameState) enterNight() error {
	night := g.RoundInfo.NightCount + 1
	queue, err := g.BuildNightQueue(night)
	if err != nil {
		return err
	}
	g.closeVoteSilently()
	g.RoundInfo.NightCount = night
	g.NightQueue = queue
	g.NightCurrentIndex = 0
	if len(queue) == 0 {
		g.NightCurrentIndex = -1
	}
	return nil
}

func (g *GameState) enterDay() {
	g.NightQueue = nil
	g.NightCurrentIndex = -1
	g.RoundInfo.DayCount++
	g.RoundInfo.NominationCount = 0
	for i := range g.Seats {
		g.Seats[i].HandRaised = false
		g.Seats[i].VoteLocked = false
	}
}

func transitionLine(from, to Phase, ri RoundInfo) string {
	switch to {
	case PhaseNight:
		return "Night " + strconv.Itoa(ri.NightCount) + " begins"
	case PhaseDay:
		if from == PhaseNight {
			return "Day " + strconv.Itoa(ri.DayCount) + " begins"
		}
		return "Nominations are closed"
	case PhaseNomination:
		return "Nominations are open"
	case PhaseFinalDay:
		return "Final day"
	}
	return string(from) + " -> " + string(to)
}
