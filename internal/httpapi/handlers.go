package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ParzivalEugene/planning-poker/internal/poker"
	"github.com/ParzivalEugene/planning-poker/internal/storage"
	"github.com/ParzivalEugene/planning-poker/internal/types"
	"github.com/ParzivalEugene/planning-poker/pkg/roomid"
)

func Login(svc *poker.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if strings.TrimSpace(req.Username) == "" {
			writeError(w, http.StatusBadRequest, "username required")
			return
		}

		user, err := svc.Login(r.Context(), req.Username)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, types.LoginResponse{ID: user.ID, Username: user.Username})
	}
}

func GetUser(svc *poker.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := svc.GetUser(r.Context(), chi.URLParam(r, "userID"))
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.LoginResponse{ID: user.ID, Username: user.Username})
	}
}

// CreateRoom mints a room id. The room record itself is created lazily on
// first join.
func CreateRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := roomid.Generate()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to generate room id")
			return
		}
		writeJSON(w, http.StatusCreated, types.CreateRoomResponse{RoomID: id})
	}
}

func Deck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.DeckResponse{Cards: types.Deck})
}

func RoomState(svc *poker.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := svc.RoomState(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.RoomStateResponse{
			Players:         state.Players,
			RoundID:         state.RoundID,
			IsRevealed:      state.IsRevealed,
			AllPlayersVoted: state.AllPlayersVoted,
		})
	}
}

func JoinRoom(svc *poker.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.JoinRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.PlayerID == "" || strings.TrimSpace(req.PlayerName) == "" {
			writeError(w, http.StatusBadRequest, "playerId and playerName required")
			return
		}

		res, err := svc.JoinRoom(r.Context(), chi.URLParam(r, "roomID"), req.PlayerID, req.PlayerName)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.JoinRoomResponse{
			Success:    true,
			Players:    res.Players,
			RoundID:    res.RoundID,
			IsRevealed: res.IsRevealed,
		})
	}
}

func SelectCard(svc *poker.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SelectCardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.PlayerID == "" || req.CardValue == "" {
			writeError(w, http.StatusBadRequest, "playerId and cardValue required")
			return
		}

		res, err := svc.SelectCard(r.Context(), chi.URLParam(r, "roomID"), req.PlayerID, req.CardValue)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.SelectCardResponse{
			Success:         true,
			Player:          res.Player,
			RoundID:         res.RoundID,
			IsRevealed:      res.IsRevealed,
			AllPlayersVoted: res.AllPlayersVoted,
		})
	}
}

func StartNewRound(svc *poker.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.StartNewRound(r.Context(), chi.URLParam(r, "roomID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.StartRoundResponse{
			Success: true,
			Players: res.Players,
			RoundID: res.RoundID,
		})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

// writeServiceError maps domain sentinels onto HTTP statuses. Anything
// unrecognized is a store failure the caller may retry with backoff.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, poker.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, poker.ErrRoomFull),
		errors.Is(err, poker.ErrNoActiveGame),
		errors.Is(err, poker.ErrAlreadyRevealed),
		errors.Is(err, poker.ErrNotAMember):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "store error, retry later")
	}
}
