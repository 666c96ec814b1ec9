package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"example.com/grimoire/internal/auth"
	"example.com/grimoire/internal/roomsync"
)

const maxSyncBody = 1 << 20

// Syncer applies one batch; *roomsync.Controller implements it.
type Syncer interface {
	Sync(ctx context.Context, req roomsync.Request) (roomsync.Response, error)
}

type SyncHandler struct {
	Sync     Syncer
	Verifier auth.Verifier
	Stats    StatsRepo
	Log      *slog.Logger
}

// ServeHTTP handles POST /api/sync. Every request-level failure, including
// authentication, answers 400 with {success:false, error}.
func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeSyncError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token, ok := bearerToken(r)
	if !ok {
		writeSyncError(w, http.StatusBadRequest, "missing bearer token")
		return
	}
	claims, err := h.Verifier.Verify(token)
	if err != nil {
		writeSyncError(w, http.StatusBadRequest, "invalid token")
		return
	}

	var req roomsync.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSyncBody)).Decode(&req); err != nil {
		writeSyncError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID != claims.UserID {
		writeSyncError(w, http.StatusBadRequest, "userId does not match token")
		return
	}

	resp, err := h.Sync.Sync(r.Context(), req)
	if err != nil {
		if roomsync.KindOf(err) == roomsync.KindInternal {
			h.log().Error("sync failed", "room", req.RoomID, "user", req.UserID, "err", err)
			writeSyncError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeSyncError(w, http.StatusBadRequest, err.Error())
		return
	}

	if n := applied(resp.Results); n > 0 {
		if err := h.Stats.OperationsSynced(r.Context(), req.UserID, n); err != nil {
			h.log().Warn("bump operations synced", "user", req.UserID, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func applied(results []roomsync.Result) int {
	n := 0
	for _, r := range results {
		if r.Success && !r.Deduplicated {
			n++
		}
	}
	return n
}

func (h *SyncHandler) log() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}
