// Package api provides the HTTP surface of the commitment engine: the
// client view (placing commitments, reading aggregates, claiming payouts)
// and the oracle's resolution endpoint.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openlobby/commitment-engine/internal/amount"
	"github.com/openlobby/commitment-engine/internal/exposure"
	"github.com/openlobby/commitment-engine/internal/ledger"
	"github.com/openlobby/commitment-engine/internal/legislation"
	"github.com/openlobby/commitment-engine/internal/metrics"
	"github.com/openlobby/commitment-engine/internal/model"
	"github.com/openlobby/commitment-engine/internal/registry"
	"github.com/openlobby/commitment-engine/internal/settlement"
	"github.com/openlobby/commitment-engine/internal/treasury"
)

// oracleTokenHeader authenticates the oracle on the resolve endpoint.
const oracleTokenHeader = "X-Oracle-Token"

// Service wires the registry, ledger, and settlement engine to HTTP
// handlers. Pass nil for hub if WebSocket broadcasting is not needed.
type Service struct {
	registry *registry.Registry
	ledger   *ledger.Ledger
	engine   *settlement.Engine
	treasury treasury.Treasury
	hub      *Hub
}

// NewService creates the HTTP service.
func NewService(reg *registry.Registry, led *ledger.Ledger, eng *settlement.Engine, tr treasury.Treasury, hub *Hub) *Service {
	return &Service{
		registry: reg,
		ledger:   led,
		engine:   eng,
		treasury: tr,
		hub:      hub,
	}
}

// Routes mounts all handlers under the given router.
func (s *Service) Routes(r chi.Router) {
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}

	r.Get("/bills", s.ListBills)
	r.Post("/bills", s.RegisterBill)
	r.Get("/bills/{billID}", s.GetBill)
	r.Post("/bills/{billID}/resolve", s.ResolveBill)
	r.Get("/bills/{billID}/aggregates", s.GetAggregates)
	r.Get("/bills/{billID}/commitments/{committer}", s.GetCommitment)
	r.Post("/bills/{billID}/settle", s.SettleBill)
	r.Post("/bills/{billID}/claims", s.ClaimPayout)

	r.Post("/commitments", s.PlaceCommitment)
}

// --- Request/Response types ---

// RegisterBillRequest is the JSON body for bill registration.
type RegisterBillRequest struct {
	BillID   string             `json:"bill_id"`
	Metadata model.BillMetadata `json:"metadata"`
}

// ResolveBillRequest is the JSON body for the oracle's resolution call.
type ResolveBillRequest struct {
	Outcome model.Outcome `json:"outcome"`
}

// PlaceCommitmentRequest is the JSON body for POST /commitments.
// Transferred is the value moved through the transfer channel and must
// equal Amount exactly.
type PlaceCommitmentRequest struct {
	BillID      string        `json:"bill_id"`
	Committer   string        `json:"committer"`
	Amount      amount.Amount `json:"amount"`
	InSupport   bool          `json:"in_support"`
	Transferred amount.Amount `json:"transferred"`
}

// ClaimRequest is the JSON body for POST /bills/{billID}/claims.
type ClaimRequest struct {
	Committer string `json:"committer"`
}

// CommitmentResponse wraps a possibly-absent commitment lookup.
type CommitmentResponse struct {
	Committed  bool              `json:"committed"`
	Commitment *model.Commitment `json:"commitment,omitempty"`
}

// --- Handlers ---

// RegisterBill handles POST /api/v1/bills
func (s *Service) RegisterBill(w http.ResponseWriter, r *http.Request) {
	var req RegisterBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.BillID == "" {
		writeError(w, "bill_id is required", http.StatusBadRequest)
		return
	}

	bill, created, err := s.registry.Register(r.Context(), req.BillID, req.Metadata)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(bill)
}

// ListBills handles GET /api/v1/bills
func (s *Service) ListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, "failed to list bills", http.StatusInternalServerError)
		return
	}
	if bills == nil {
		bills = []model.Bill{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bills)
}

// GetBill handles GET /api/v1/bills/{billID}
func (s *Service) GetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := s.registry.Get(r.Context(), chi.URLParam(r, "billID"))
	if err != nil {
		s.writeMappedError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bill)
}

// ResolveBill handles POST /api/v1/bills/{billID}/resolve
// The oracle authenticates with the X-Oracle-Token header.
func (s *Service) ResolveBill(w http.ResponseWriter, r *http.Request) {
	billID := chi.URLParam(r, "billID")

	var req ResolveBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	caller := r.Header.Get(oracleTokenHeader)
	if err := s.registry.Resolve(r.Context(), caller, billID, req.Outcome); err != nil {
		s.writeMappedError(w, err)
		return
	}

	metrics.ResolutionsTotal.WithLabelValues(string(req.Outcome)).Inc()

	// Resolution events reach the hub through the registry's resolve hook;
	// broadcasting here as well would emit the event twice.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"bill_id": billID, "outcome": string(req.Outcome)})
}

// PlaceCommitment handles POST /api/v1/commitments
func (s *Service) PlaceCommitment(w http.ResponseWriter, r *http.Request) {
	var req PlaceCommitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.BillID == "" {
		writeError(w, "bill_id is required", http.StatusBadRequest)
		return
	}

	c, err := s.ledger.PlaceCommitment(r.Context(), ledger.PlaceRequest{
		BillID:      req.BillID,
		Committer:   req.Committer,
		Amount:      req.Amount,
		InSupport:   req.InSupport,
		Transferred: req.Transferred,
	})
	if err != nil {
		countRejection(err)
		s.writeMappedError(w, err)
		return
	}

	metrics.CommitmentsTotal.WithLabelValues(sideLabel(c.InSupport)).Inc()
	s.updatePoolGauge(r)
	if s.hub != nil {
		inSupport := c.InSupport
		s.hub.Broadcast(Event{
			Type:      "commitment_placed",
			BillID:    c.BillID,
			Committer: c.Committer,
			InSupport: &inSupport,
			Amount:    c.Amount.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(c)
}

// GetAggregates handles GET /api/v1/bills/{billID}/aggregates
func (s *Service) GetAggregates(w http.ResponseWriter, r *http.Request) {
	agg, err := s.ledger.Aggregates(r.Context(), chi.URLParam(r, "billID"))
	if err != nil {
		writeError(w, "failed to compute aggregates", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(agg)
}

// GetCommitment handles GET /api/v1/bills/{billID}/commitments/{committer}
// Absence of a commitment is not an error.
func (s *Service) GetCommitment(w http.ResponseWriter, r *http.Request) {
	c, err := s.ledger.Commitment(r.Context(), chi.URLParam(r, "billID"), chi.URLParam(r, "committer"))
	if err != nil {
		writeError(w, "failed to look up commitment", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CommitmentResponse{Committed: c != nil, Commitment: c})
}

// SettleBill handles POST /api/v1/bills/{billID}/settle
func (s *Service) SettleBill(w http.ResponseWriter, r *http.Request) {
	billID := chi.URLParam(r, "billID")

	claims, err := s.engine.Settle(r.Context(), billID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	if claims == nil {
		claims = []model.Claim{}
	}

	metrics.SettlementsTotal.Inc()
	if s.hub != nil {
		s.hub.Broadcast(Event{Type: "bill_settled", BillID: billID, Claims: len(claims)})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(claims)
}

// ClaimPayout handles POST /api/v1/bills/{billID}/claims
func (s *Service) ClaimPayout(w http.ResponseWriter, r *http.Request) {
	billID := chi.URLParam(r, "billID")

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Committer == "" {
		writeError(w, "committer is required", http.StatusBadRequest)
		return
	}

	claim, err := s.engine.Claim(r.Context(), billID, req.Committer)
	if err != nil {
		if errors.Is(err, settlement.ErrTransferFailed) {
			metrics.ClaimFailures.Inc()
		}
		s.writeMappedError(w, err)
		return
	}

	metrics.ClaimsTotal.Inc()
	s.updatePoolGauge(r)
	if s.hub != nil {
		s.hub.Broadcast(Event{
			Type:      "claim_paid",
			BillID:    billID,
			Committer: req.Committer,
			Amount:    claim.Amount.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(claim)
}

// --- Helpers ---

func (s *Service) updatePoolGauge(r *http.Request) {
	if pool, err := s.treasury.PoolBalance(r.Context()); err == nil {
		metrics.EscrowedPool.Set(pool.Decimal().InexactFloat64())
	}
}

func sideLabel(inSupport bool) string {
	if inSupport {
		return "support"
	}
	return "against"
}

func countRejection(err error) {
	switch {
	case errors.Is(err, ledger.ErrBelowMinimum):
		metrics.CommitmentRejections.WithLabelValues("below_minimum").Inc()
	case errors.Is(err, ledger.ErrAmountMismatch):
		metrics.CommitmentRejections.WithLabelValues("amount_mismatch").Inc()
	case errors.Is(err, ledger.ErrBillResolved):
		metrics.CommitmentRejections.WithLabelValues("bill_resolved").Inc()
	case errors.Is(err, ledger.ErrDuplicateCommitment):
		metrics.CommitmentRejections.WithLabelValues("duplicate").Inc()
	case errors.Is(err, exposure.ErrLimitExceeded):
		metrics.CommitmentRejections.WithLabelValues("exposure_limit").Inc()
	case errors.Is(err, treasury.ErrInsufficientFunds):
		metrics.CommitmentRejections.WithLabelValues("insufficient_funds").Inc()
	}
}

// writeMappedError translates domain sentinels into HTTP status codes.
func (s *Service) writeMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrUnauthorized):
		writeError(w, "caller is not the oracle", http.StatusUnauthorized)
	case errors.Is(err, registry.ErrUnknownBill),
		errors.Is(err, settlement.ErrUnknownBill):
		writeError(w, "bill not found", http.StatusNotFound)
	case errors.Is(err, registry.ErrAlreadyResolved),
		errors.Is(err, ledger.ErrBillResolved):
		writeError(w, "bill already resolved", http.StatusConflict)
	case errors.Is(err, registry.ErrInvalidOutcome):
		writeError(w, "outcome must be became_law or rejected", http.StatusBadRequest)
	case errors.Is(err, ledger.ErrBelowMinimum):
		writeError(w, "commitment must be at least the minimum amount", http.StatusBadRequest)
	case errors.Is(err, ledger.ErrAmountMismatch):
		writeError(w, "transferred value must equal the declared amount", http.StatusBadRequest)
	case errors.Is(err, ledger.ErrMissingCommitter):
		writeError(w, "committer is required", http.StatusBadRequest)
	case errors.Is(err, ledger.ErrDuplicateCommitment):
		writeError(w, "a commitment already exists for this bill", http.StatusConflict)
	case errors.Is(err, exposure.ErrLimitExceeded):
		writeError(w, "open escrow limit exceeded", http.StatusConflict)
	case errors.Is(err, treasury.ErrInsufficientFunds):
		writeError(w, "insufficient funds to escrow", http.StatusConflict)
	case errors.Is(err, settlement.ErrNotYetResolved):
		writeError(w, "bill is not resolved yet", http.StatusConflict)
	case errors.Is(err, settlement.ErrAlreadySettled):
		writeError(w, "bill already settled", http.StatusConflict)
	case errors.Is(err, settlement.ErrNotSettled):
		writeError(w, "bill is not settled yet", http.StatusConflict)
	case errors.Is(err, settlement.ErrNothingToClaim):
		writeError(w, "nothing to claim", http.StatusConflict)
	case errors.Is(err, settlement.ErrTransferFailed):
		writeError(w, "payout transfer failed, claim can be retried", http.StatusBadGateway)
	case errors.Is(err, legislation.ErrInvalidNumber):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
