package httpserver

import "net/http"

type roomSummary struct {
	Participants int `json:"participants"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rooms":  s.rooms.RoomCount(),
	})
}

// handleRooms lists every live room by canonical code.
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	stats := s.rooms.Stats()
	out := make(map[string]roomSummary, len(stats))
	for code, n := range stats {
		out[code] = roomSummary{Participants: n}
	}
	WriteJSON(w, http.StatusOK, out)
}
