package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
	"github.com/obiefule/wallet-platform/internal/logging"
)

type ledgerService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
}

type WalletHandler struct {
	ledger ledgerService
}

func NewWalletHandler(ledger ledgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

type walletDTO struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	Balance   domain.Money `json:"balance"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func toWalletDTO(w *domain.Wallet) walletDTO {
	return walletDTO{
		ID:        w.ID,
		UserID:    w.UserID,
		Balance:   w.Balance,
		UpdatedAt: w.UpdatedAt,
	}
}

func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, appErr := ownerFromPath(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	wallet, err := h.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to get balance", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toWalletDTO(wallet))
}
