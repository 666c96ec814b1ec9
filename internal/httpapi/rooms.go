package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"example.com/grimoire/internal/game"
	"example.com/grimoire/internal/roomsync"
)

const (
	roomCodeLength   = 6
	roomCodeAttempts = 5
)

type MemberRepo interface {
	Add(ctx context.Context, roomCode, userID string) error
	IsMember(ctx context.Context, roomCode, userID string) (bool, error)
}

type RoomHandler struct {
	Rooms   roomsync.RoomStore
	Members MemberRepo
	Stats   StatsRepo
	Log     *slog.Logger
	Now     func() time.Time
}

type CreateRoomRequest struct {
	SeatCount           int                      `json:"seatCount"`
	ScriptID            string                   `json:"scriptId"`
	RuleAutomationLevel game.RuleAutomationLevel `json:"ruleAutomationLevel"`
}

type RoomResponse struct {
	Code          string          `json:"code"`
	StorytellerID string          `json:"storytellerId"`
	StateVersion  time.Time       `json:"stateVersion"`
	State         *game.GameState `json:"state,omitempty"`
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if req.ScriptID == "" {
		req.ScriptID = game.TroubleBrewing
	}
	if req.RuleAutomationLevel == "" {
		req.RuleAutomationLevel = game.AutomationGuided
	}
	if _, err := game.LookupScript(req.ScriptID); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if !req.RuleAutomationLevel.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request", "unknown ruleAutomationLevel")
		return
	}
	if _, err := game.BaseComposition(req.SeatCount); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	now := h.now().UTC().Truncate(time.Microsecond)
	room := roomsync.Room{
		StorytellerID: userID,
		State:         game.NewGameState(req.ScriptID, req.SeatCount, req.RuleAutomationLevel),
		Version:       now,
		CreatedAt:     now,
	}

	var err error
	for range roomCodeAttempts {
		room.Code = randID(roomCodeLength)
		if err = h.Rooms.Create(r.Context(), room); !errors.Is(err, roomsync.ErrRoomExists) {
			break
		}
	}
	if err != nil {
		h.log().Error("create room", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to create room")
		return
	}

	if err := h.Members.Add(r.Context(), room.Code, userID); err != nil {
		h.log().Error("add storyteller membership", "room", room.Code, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to join room")
		return
	}
	if err := h.Stats.RoomCreated(r.Context(), userID); err != nil {
		h.log().Warn("bump rooms created", "user", userID, "err", err)
	}

	h.log().Info("room created", "room", room.Code, "storyteller", userID, "seats", req.SeatCount)
	writeJSON(w, http.StatusCreated, RoomResponse{
		Code:          room.Code,
		StorytellerID: room.StorytellerID,
		StateVersion:  room.Version,
		State:         room.State,
	})
}

func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	code := chi.URLParam(r, "code")

	room, ok := h.load(w, r, code)
	if !ok {
		return
	}

	already, err := h.Members.IsMember(r.Context(), code, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "membership lookup failed")
		return
	}
	if !already {
		if err := h.Members.Add(r.Context(), code, userID); err != nil {
			h.log().Error("join room", "room", code, "err", err)
			writeError(w, http.StatusInternalServerError, "internal", "failed to join room")
			return
		}
		if err := h.Stats.RoomJoined(r.Context(), userID); err != nil {
			h.log().Warn("bump rooms joined", "user", userID, "err", err)
		}
	}

	writeJSON(w, http.StatusOK, RoomResponse{
		Code:          room.Code,
		StorytellerID: room.StorytellerID,
		StateVersion:  room.Version,
	})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	code := chi.URLParam(r, "code")

	ok, err := h.Members.IsMember(r.Context(), code, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "membership lookup failed")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden", "not a member of this room")
		return
	}

	room, ok := h.load(w, r, code)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, RoomResponse{
		Code:          room.Code,
		StorytellerID: room.StorytellerID,
		StateVersion:  room.Version,
		State:         room.State,
	})
}

func (h *RoomHandler) load(w http.ResponseWriter, r *http.Request, code string) (roomsync.Room, bool) {
	room, err := h.Rooms.Get(r.Context(), code)
	if errors.Is(err, roomsync.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "room not found")
		return roomsync.Room{}, false
	}
	if err != nil {
		h.log().Error("load room", "room", code, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load room")
		return roomsync.Room{}, false
	}
	return room, true
}

func (h *RoomHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h *RoomHandler) log() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

func randID(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return string(b)
}
