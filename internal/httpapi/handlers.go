package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/engine"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

const maxBody = 1 << 20

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "ok",
		"engines": len(s.reg.Symbols()),
	}
	if s.pub != nil {
		state := s.pub.BreakerState()
		body["publisher"] = map[string]interface{}{
			"breaker": state.String(),
			"dropped": s.pub.Dropped(),
		}
		if state == gobreaker.StateOpen {
			body["status"] = "degraded"
		}
	}
	writeJSON(w, r, http.StatusOK, body)
}

func (s *Server) listSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string][]string{"symbols": s.reg.Symbols()})
}

func (s *Server) decide(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	var in signals.Input
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(&in); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode input: %w", err))
		return
	}
	writeJSON(w, r, http.StatusOK, e.Decide(in))
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	e, ok := s.known(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("limit: %w", err))
			return
		}
		limit = n
	}
	ds := e.History(limit)
	if ds == nil {
		ds = []decision.Decision{}
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"decisions": ds})
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	e, ok := s.known(w, r)
	if !ok {
		return
	}
	e.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) flapState(w http.ResponseWriter, r *http.Request) {
	e, ok := s.known(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, e.FlapState())
}

func (s *Server) symbolConfig(w http.ResponseWriter, r *http.Request) {
	e, ok := s.known(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, configView(e.Config()))
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, configView(s.reg.Config()))
}

// patchConfig accepts a partial config. anti_flip_cooldown may be a
// duration string ("20s") or nanoseconds.
func (s *Server) patchConfig(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&raw); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode patch: %w", err))
		return
	}
	if v, ok := raw["anti_flip_cooldown"].(string); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("anti_flip_cooldown: %w", err))
			return
		}
		raw["anti_flip_cooldown"] = int64(d)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("encode patch: %w", err))
		return
	}
	var p engine.ConfigPatch
	if err := json.Unmarshal(b, &p); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode patch: %w", err))
		return
	}

	cfg, err := s.reg.UpdateConfig(p)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	s.log.Info().Msg("config updated over http")
	writeJSON(w, r, http.StatusOK, configView(cfg))
}

func (s *Server) engine(w http.ResponseWriter, r *http.Request) (*engine.Engine, bool) {
	e, err := s.reg.Get(mux.Vars(r)["symbol"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return nil, false
	}
	return e, true
}

// known resolves an existing engine. Read and reset routes never create one.
func (s *Server) known(w http.ResponseWriter, r *http.Request) (*engine.Engine, bool) {
	symbol := mux.Vars(r)["symbol"]
	e, ok := s.reg.Lookup(symbol)
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("unknown symbol %q", symbol))
		return nil, false
	}
	return e, true
}

// configJSON renders durations as strings for humans.
type configJSON struct {
	engine.Config
	Flap struct {
		engine.FlapConfig
		AntiFlipCooldown string `json:"anti_flip_cooldown"`
	} `json:"flap"`
}

func configView(c engine.Config) configJSON {
	v := configJSON{Config: c}
	v.Flap.FlapConfig = c.Flap
	v.Flap.AntiFlipCooldown = c.Flap.AntiFlipCooldown.String()
	return v
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(fmt.Errorf("encode response: %w", err)).Msg("write failed")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	writeJSON(w, r, code, map[string]string{"error": err.Error()})
}
