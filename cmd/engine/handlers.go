package main

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	core "synnergy-network/core"
)

// Server binds an EngineService to the five HTTP endpoints spec.md §6
// describes, one handler per logical operation, in the style of the
// teacher's dexserver/explorer handlers: decode, delegate to core, encode.
type Server struct {
	engine *core.EngineService
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleGenesis(w http.ResponseWriter, r *http.Request) {
	var req wireGenesisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg, err := req.toCore()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res := s.engine.RunGenesis(cfg)
	if !res.Success {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": res.FailureMessage})
		return
	}
	effects := make([]wireKeyTransform, 0, len(res.Effect))
	for _, e := range res.Effect {
		effects = append(effects, keyTransformToWire(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"post_state_digest": res.PostStateDigest.String(),
		"effect":            effects,
	})
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	var req wireUpgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg, err := req.toCore()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res := s.engine.Upgrade(cfg)
	if !res.Success {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": res.FailureMessage})
		return
	}
	effects := make([]wireKeyTransform, 0, len(res.Effect))
	for _, e := range res.Effect {
		effects = append(effects, keyTransformToWire(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"post_state_digest": res.PostStateDigest.String(),
		"effect":            effects,
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req wireExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	creq, err := req.toCore()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.engine.Execute(creq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if res.MissingParent {
		writeJSON(w, http.StatusNotFound, map[string]string{"missing_parent": creq.ParentStateDigest.String()})
		return
	}
	results := make([]wireDeployResult, 0, len(res.DeployResults))
	for _, dr := range res.DeployResults {
		results = append(results, deployResultToWire(dr))
	}
	writeJSON(w, http.StatusOK, map[string]any{"deploy_results": results})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req wireCommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	creq, err := req.toCore()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.engine.Commit(creq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	switch res.Outcome {
	case core.CommitSuccess:
		writeJSON(w, http.StatusOK, map[string]any{
			"post_state_digest": res.PostStateDigest.String(),
			"bonded_validators": bondedValidatorsToWire(res.BondedValidators),
		})
	case core.CommitMissingPrestate:
		writeJSON(w, http.StatusNotFound, map[string]string{"missing_prestate": res.Message})
	case core.CommitKeyNotFound:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"key_not_found": res.Message})
	case core.CommitTypeMismatch:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"type_mismatch": res.Message})
	default:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"failed_transform": res.Message})
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req wireQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	creq, err := req.toCore()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res := s.engine.Query(creq)
	if !res.Success {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": res.FailureMessage})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": valueToWire(res.Value)})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.WithFields(log.Fields{"method": r.Method, "path": r.URL.Path}).Info("engine: request")
		next.ServeHTTP(w, r)
	})
}
