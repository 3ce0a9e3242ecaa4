package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/wallet-sentinel/sentinel/internal/apperr"
	"github.com/wallet-sentinel/sentinel/pkg/models"
)

type subscribeRequest struct {
	Wallet             string `json:"wallet"`
	SessionID          string `json:"sessionId"`
	IncludeTransactions bool  `json:"includeTransactions"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, requestID, apperr.Validation("malformed request body"))
		return
	}
	if req.Wallet == "" {
		writeError(w, requestID, apperr.Validation("wallet is required"))
		return
	}

	result, err := s.facade.Subscribe(r.Context(), req.Wallet, req.IncludeTransactions)
	if err != nil {
		writeError(w, requestID, err)
		return
	}
	writeSuccess(w, requestID, result)
}

type unsubscribeRequest struct {
	Wallet    string `json:"wallet"`
	SessionID string `json:"sessionId"`
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, requestID, apperr.Validation("malformed request body"))
		return
	}

	result, err := s.facade.Unsubscribe(req.Wallet)
	if err != nil {
		writeError(w, requestID, err)
		return
	}
	writeSuccess(w, requestID, result)
}

func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	wallet := mux.Vars(r)["addr"]
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	result, err := s.facade.GetScore(r.Context(), wallet, refresh)
	if err != nil {
		writeError(w, requestID, err)
		return
	}
	writeSuccess(w, requestID, result)
}

type batchScoreRequest struct {
	Wallets []string `json:"wallets"`
}

func (s *Server) handleBatchScore(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	var req batchScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, requestID, apperr.Validation("malformed request body"))
		return
	}

	results, err := s.facade.BatchScore(r.Context(), req.Wallets)
	if err != nil {
		writeError(w, requestID, err)
		return
	}
	writeSuccess(w, requestID, results)
}

func (s *Server) handleFlagStatus(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	wallet := mux.Vars(r)["addr"]

	result, err := s.facade.FlagStatus(r.Context(), wallet)
	if err != nil {
		writeError(w, requestID, err)
		return
	}
	writeSuccess(w, requestID, result)
}

type flagRequest struct {
	RiskLevel       models.RiskLevel `json:"riskLevel"`
	ReputationScore float64          `json:"reputationScore"`
	Reason          string           `json:"reason"`
}

func (s *Server) handleFlag(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	wallet := mux.Vars(r)["addr"]

	var req flagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, requestID, apperr.Validation("malformed request body"))
		return
	}

	result, err := s.facade.Flag(r.Context(), wallet, req.RiskLevel, req.ReputationScore, req.Reason)
	if err != nil {
		writeError(w, requestID, err)
		return
	}
	if result.Err != nil {
		writeError(w, requestID, result.Err)
		return
	}
	writeSuccess(w, requestID, result)
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, uuid.NewString(), s.facade.Active())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, uuid.NewString(), map[string]interface{}{"status": "ok"})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.Accept(w, r); err != nil && s.logger != nil {
		s.logger.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
	}
}
