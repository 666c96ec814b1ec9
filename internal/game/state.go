package game

// Phase is the coarse game phase of a room.
type Phase string

const (
	PhaseSetup      Phase = "SETUP"
	PhaseNight      Phase = "NIGHT"
	PhaseDay        Phase = "DAY"
	PhaseNomination Phase = "NOMINATION"
	PhaseFinalDay   Phase = "FINAL_DAY"
)

// IsDaytime reports whether nominations may happen in p.
func (p Phase) IsDaytime() bool {
	return p == PhaseDay || p == PhaseNomination || p == PhaseFinalDay
}

// RuleAutomationLevel controls how strictly the engine enforces rules the
// storyteller could otherwise adjudicate by hand.
type RuleAutomationLevel string

const (
	AutomationFullAuto RuleAutomationLevel = "FULL_AUTO"
	AutomationGuided   RuleAutomationLevel = "GUIDED"
	AutomationManual   RuleAutomationLevel = "MANUAL"
)

func (l RuleAutomationLevel) Valid() bool {
	switch l {
	case AutomationFullAuto, AutomationGuided, AutomationManual:
		return true
	}
	return false
}

// GameState is the whole authoritative state of one room. It is stored as a
// single JSON document and mutated only through the methods of this package.
type GameState struct {
	Phase             Phase              `json:"phase"`
	Seats             []Seat             `json:"seats"`
	NightQueue        []NightQueueEntry  `json:"nightQueue"`
	NightCurrentIndex int                `json:"nightCurrentIndex"`
	Voting            *VotingState       `json:"voting"`
	DailyNominations  []NominationRecord `json:"dailyNominations"`
	RoundInfo         RoundInfo          `json:"roundInfo"`
	GameOver          *GameOver          `json:"gameOver"`
	Messages          []Message          `json:"messages"`
	NightActions      []NightAction      `json:"nightActions"`

	ScriptID            string              `json:"scriptId"`
	CustomRoles         []Role              `json:"customRoles,omitempty"`
	RuleAutomationLevel RuleAutomationLevel `json:"ruleAutomationLevel"`
}

type RoundInfo struct {
	DayCount        int `json:"dayCount"`
	NightCount      int `json:"nightCount"`
	NominationCount int `json:"nominationCount"`
	// ExecutedDay is the day number of the latest execution, 0 if none.
	ExecutedDay int `json:"executedDay"`
}

type GameOver struct {
	Winner string `json:"winner"`
	Reason string `json:"reason"`
}

// NightAction is a player's submitted choice for their role's night ability.
// The engine only records it; resolution belongs to the storyteller.
type NightAction struct {
	Night   int            `json:"night"`
	SeatID  int            `json:"seatId"`
	RoleID  string         `json:"roleId"`
	Payload map[string]any `json:"payload,omitempty"`
}

// NewGameState builds a fresh SETUP state with seatCount empty seats.
func NewGameState(scriptID string, seatCount int, level RuleAutomationLevel) *GameState {
	if !level.Valid() {
		level = AutomationGuided
	}
	st := &GameState{
		Phase:               PhaseSetup,
		Seats:               make([]Seat, seatCount),
		NightCurrentIndex:   -1,
		ScriptID:            scriptID,
		RuleAutomationLevel: level,
	}
	for i := range st.Seats {
		st.Seats[i] = Seat{ID: i}
	}
	return st
}

func (g *GameState) seat(id int) (*Seat, error) {
	if id < 0 || id >= len(g.Seats) {
		return nil, ErrSeatNotFound
	}
	return &g.Seats[id], nil
}

// Seat returns a copy of the seat with the given id.
func (g *GameState) Seat(id int) (Seat, bool) {
	s, err := g.seat(id)
	if err != nil {
		return Seat{}, false
	}
	return *s, true
}

// SeatOf returns the seat bound to userID, if any.
func (g *GameState) SeatOf(userID string) (Seat, bool) {
	if userID == "" {
		return Seat{}, false
	}
	for _, s := range g.Seats {
		if s.UserID == userID {
			return s, true
		}
	}
	return Seat{}, false
}

// LivingCount counts seats that are occupied and alive.
func (g *GameState) LivingCount() int {
	n := 0
	for _, s := range g.Seats {
		if s.Occupied() && !s.IsDead {
			n++
		}
	}
	return n
}

// ClaimSeat binds userID to the seat, or unbinds it when userID is empty.
func (g *GameState) ClaimSeat(seatID int, userID string, virtual bool) (string, error) {
	s, err := g.seat(seatID)
	if err != nil {
		return "", err
	}
	if userID != "" {
		if other, ok := g.SeatOf(userID); ok && other.ID != seatID {
			return "", ErrUserAlreadySeated
		}
	}
	s.UserID = userID
	s.IsVirtual = virtual && userID != ""
	if userID == "" {
		return g.system(seatLabel(seatID) + " is now empty"), nil
	}
	return g.system(seatLabel(seatID) + " has been taken"), nil
}

// EndGame records the terminal result.
func (g *GameState) EndGame(winner, reason string) (string, error) {
	if g.GameOver != nil {
		return "", ErrGameOver
	}
	if winner == "" {
		return "", ErrWinnerRequired
	}
	g.GameOver = &GameOver{Winner: winner, Reason: reason}
	g.closeVoteSilently()
	line := "Game over: " + winner + " wins"
	if reason != "" {
		line += " (" + reason + ")"
	}
	return g.system(line), nil
}
