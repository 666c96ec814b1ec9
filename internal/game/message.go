package game

import "strconv"

type MessageKind string

const (
	MessageSystem  MessageKind = "system"
	MessageChat    MessageKind = "chat"
	MessageWhisper MessageKind = "whisper"
)

// MaxMessageLength is the longest chat message accepted, in characters.
const MaxMessageLength = 500

// Message is one entry of the append-only room log. FromSeatID and ToSeatID
// are nil for system messages and public chat respectively.
type Message struct {
	Seq        int         `json:"seq"`
	Kind       MessageKind `json:"kind"`
	FromSeatID *int        `json:"fromSeatId,omitempty"`
	ToSeatID   *int        `json:"toSeatId,omitempty"`
	Text       string      `json:"text"`
	Day        int         `json:"day"`
	Phase      Phase       `json:"phase"`
}

func (g *GameState) appendMessage(m Message) {
	m.Seq = len(g.Messages)
	m.Day = g.RoundInfo.DayCount
	m.Phase = g.Phase
	g.Messages = append(g.Messages, m)
}

// system appends a system message and returns its text.
func (g *GameState) system(text string) string {
	g.appendMessage(Message{Kind: MessageSystem, Text: text})
	return text
}

// SendMessage appends a chat message from a seat. A non-nil recipient makes it
// a whisper.
func (g *GameState) SendMessage(fromSeatID int, recipient *int, text string) (Message, error) {
	if _, err := g.seat(fromSeatID); err != nil {
		return Message{}, err
	}
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	if len([]rune(text)) > MaxMessageLength {
		return Message{}, ErrMessageTooLong
	}
	m := Message{Kind: MessageChat, Text: text}
	from := fromSeatID
	m.FromSeatID = &from
	if recipient != nil {
		if _, err := g.seat(*recipient); err != nil {
			return Message{}, err
		}
		to := *recipient
		m.ToSeatID = &to
		m.Kind = MessageWhisper
	}
	g.appendMessage(m)
	return g.Messages[len(g.Messages)-1], nil
}

func seatLabel(id int) string {
	return "Seat " + strconv.Itoa(id+1)
}

func seatCountLabel(n int) string {
	if n == 1 {
		return "1 seat"
	}
	return strconv.Itoa(n) + " seats"
}
