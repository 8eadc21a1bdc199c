package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/interfaces"
	"github.com/craiverse/credits-service/internal/middleware"
	"github.com/craiverse/credits-service/internal/middleware/errors"
	"github.com/craiverse/credits-service/internal/models"
)

// POST /api/credits action'ları
const (
	ActionCheck  = "check"
	ActionDeduct = "deduct"
	ActionAdd    = "add"
	ActionRefund = "refund"
)

// CreditHandler kredi HTTP isteklerini yönetir
type CreditHandler struct {
	ledger interfaces.LedgerServiceInterface
}

// NewCreditHandler yeni handler oluşturur
func NewCreditHandler(ledger interfaces.LedgerServiceInterface) *CreditHandler {
	return &CreditHandler{ledger: ledger}
}

// creditRequest POST /api/credits gövdesi
type creditRequest struct {
	Action      string `json:"action"`
	UserID      string `json:"userId"`
	Amount      int64  `json:"amount"`
	AppID       string `json:"appId,omitempty"`
	OperationID string `json:"operationId,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Source      string `json:"source,omitempty"`
	ReferenceID string `json:"referenceId,omitempty"`
}

type balanceResponse struct {
	Success        bool   `json:"success"`
	UserID         string `json:"user_id"`
	Balance        int64  `json:"balance"`
	BonusBalance   int64  `json:"bonus_balance"`
	LifetimeEarned int64  `json:"lifetime_earned"`
	LifetimeSpent  int64  `json:"lifetime_spent"`
}

type checkResponse struct {
	Success   bool  `json:"success"`
	HasEnough bool  `json:"has_enough"`
	Balance   int64 `json:"balance"`
	Required  int64 `json:"required"`
}

type mutationResponse struct {
	Success     bool                      `json:"success"`
	Action      string                    `json:"action"`
	NewBalance  int64                     `json:"new_balance"`
	Transaction *models.CreditTransaction `json:"transaction"`
}

// targetUser userId verilmemişse kullanıcı token'ının subject'i kullanılır
func targetUser(principal *models.Principal, userID string) string {
	if userID == "" && !principal.IsService() {
		return principal.Subject
	}
	return userID
}

// GetBalance GET /api/credits?userId=
func (h *CreditHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	userID := targetUser(principal, r.URL.Query().Get("userId"))

	if err := middleware.Authorize(principal, middleware.PermReadCredits, userID); err != nil {
		errors.Write(w, r, err)
		return
	}

	account, err := h.ledger.GetAccount(r.Context(), userID)
	if err != nil {
		errors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		Success:        true,
		UserID:         account.UserID,
		Balance:        account.Balance,
		BonusBalance:   account.BonusBalance,
		LifetimeEarned: account.LifetimeEarned,
		LifetimeSpent:  account.LifetimeSpent,
	})
}

// ListTransactions GET /api/credits/transactions?userId=&limit=&offset=
func (h *CreditHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())
	query := r.URL.Query()
	userID := targetUser(principal, query.Get("userId"))

	if err := middleware.Authorize(principal, middleware.PermReadCredits, userID); err != nil {
		errors.Write(w, r, err)
		return
	}

	limit, offset := 20, 0
	if v, err := strconv.Atoi(query.Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(query.Get("offset")); err == nil && v >= 0 {
		offset = v
	}

	transactions, err := h.ledger.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		errors.Write(w, r, err)
		return
	}
	if transactions == nil {
		transactions = []*models.CreditTransaction{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"user_id":      userID,
		"transactions": transactions,
		"limit":        limit,
		"offset":       offset,
		"count":        len(transactions),
	})
}

// HandleAction POST /api/credits, action alanına göre dağıtır
func (h *CreditHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFromContext(r.Context())

	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.Write(w, r, &errors.ValidationError{
			Message:    "Invalid JSON body",
			StatusCode: http.StatusBadRequest,
			Field:      "body",
		})
		return
	}
	req.UserID = targetUser(principal, req.UserID)

	permission, ok := actionPermissions[req.Action]
	if !ok {
		errors.Write(w, r, &errors.ValidationError{
			Message:    fmt.Sprintf("unknown action %q, expected one of check, deduct, add, refund", req.Action),
			StatusCode: http.StatusBadRequest,
			Field:      "action",
			Value:      req.Action,
		})
		return
	}

	if err := middleware.Authorize(principal, permission, req.UserID); err != nil {
		errors.Write(w, r, err)
		return
	}

	switch req.Action {
	case ActionCheck:
		h.check(w, r, &req)
	case ActionDeduct:
		if req.AppID == "" && principal != nil {
			req.AppID = principal.AppID
		}
		h.mutate(w, r, req.Action, func() (*models.LedgerResult, error) {
			return h.ledger.Deduct(r.Context(), &models.DeductRequest{
				UserID:      req.UserID,
				Amount:      req.Amount,
				AppID:       req.AppID,
				OperationID: req.OperationID,
				Reason:      req.Reason,
			})
		})
	case ActionAdd:
		h.mutate(w, r, req.Action, func() (*models.LedgerResult, error) {
			return h.ledger.Add(r.Context(), &models.AddRequest{
				UserID:      req.UserID,
				Amount:      req.Amount,
				Source:      req.Source,
				ReferenceID: req.ReferenceID,
				Reason:      req.Reason,
				Type:        models.TxTypePurchase,
			})
		})
	case ActionRefund:
		h.mutate(w, r, req.Action, func() (*models.LedgerResult, error) {
			return h.ledger.Refund(r.Context(), &models.RefundRequest{
				UserID:      req.UserID,
				Amount:      req.Amount,
				OperationID: req.OperationID,
				Reason:      req.Reason,
			})
		})
	}
}

var actionPermissions = map[string]middleware.Permission{
	ActionCheck:  middleware.PermCheckCredits,
	ActionDeduct: middleware.PermDeductCredits,
	ActionAdd:    middleware.PermAddCredits,
	ActionRefund: middleware.PermRefundCredits,
}

func (h *CreditHandler) check(w http.ResponseWriter, r *http.Request, req *creditRequest) {
	result, err := h.ledger.Check(r.Context(), req.UserID, req.Amount)
	if err != nil {
		errors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, checkResponse{
		Success:   true,
		HasEnough: result.HasEnough,
		Balance:   result.Balance,
		Required:  result.Required,
	})
}

func (h *CreditHandler) mutate(w http.ResponseWriter, r *http.Request, action string, fn func() (*models.LedgerResult, error)) {
	result, err := fn()
	if err != nil {
		errors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mutationResponse{
		Success:     true,
		Action:      action,
		NewBalance:  result.NewBalance,
		Transaction: result.Transaction,
	})

	log.Debug().
		Str("action", action).
		Int64("new_balance", result.NewBalance).
		Msg("Credit action completed")
}
