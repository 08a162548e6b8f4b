// Package handler содержит HTTP-обработчики API сервиса dealerhub.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/dealerhub-system/internal/hierarchy"
	"github.com/mmeshcher/dealerhub-system/internal/middleware"
	"github.com/mmeshcher/dealerhub-system/internal/model"
	"github.com/mmeshcher/dealerhub-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Authenticate(ctx context.Context, mobileNumber, password string) (*model.Account, error)
	CreateAccount(ctx context.Context, actorID string, params service.CreateAccountParams) (*model.Account, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	ListSubordinates(ctx context.Context, actorID string) ([]model.Account, error)
	SetAccountStatus(ctx context.Context, id string, status model.AccountStatus) error
	DeleteAccount(ctx context.Context, id string) error
	Transfer(ctx context.Context, actorID, targetID string, quantity int64, direction model.Direction) (*model.TransferResult, error)
	ListTransfers(ctx context.Context, accountID string) ([]model.Transfer, error)
	ListCodes(ctx context.Context, ownerID string) ([]model.Code, error)
}

// Handler реализует HTTP-обработчики API сервиса dealerhub.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type errorResponse struct {
	Success   bool   `json:"success"`
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
}

// writeError отправляет типизированную ошибку в формате контракта API.
func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Success:   false,
		ErrorKind: model.ErrorKind(err),
		Message:   err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type accountResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	MobileNumber string  `json:"mobileNumber"`
	Role         string  `json:"role"`
	Status       string  `json:"status"`
	CreatedBy    *string `json:"createdBy"`
	Address      string  `json:"address"`
	ShopName     string  `json:"shopName"`
	DealerCode   string  `json:"dealerCode"`
	CodeBalance  int64   `json:"codeBalance"`
	CreatedAt    string  `json:"createdAt"`
}

func toAccountResponse(a *model.Account) accountResponse {
	return accountResponse{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		MobileNumber: a.MobileNumber,
		Role:         string(a.Role),
		Status:       string(a.Status),
		CreatedBy:    a.CreatedBy,
		Address:      a.Address,
		ShopName:     a.ShopName,
		DealerCode:   a.DealerCode,
		CodeBalance:  a.Balance,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
	}
}

type loginRequest struct {
	MobileNumber string `json:"mobileNumber"`
	Password     string `json:"password"`
}

// Login выполняет аутентификацию по номеру телефона и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.MobileNumber == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	acc, err := h.service.Authenticate(r.Context(), req.MobileNumber, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		h.logger.Error("login error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, acc.ID)
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

// Logout сбрасывает cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

type createAccountRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobileNumber"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	Address      string `json:"address"`
	ShopName     string `json:"shopName"`
	DealerCode   string `json:"dealerCode"`
}

// CreateAccount создаёт подчинённую учётную запись от имени текущего актора.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Email == "" || req.MobileNumber == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	role, err := hierarchy.ParseRole(req.Role)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	acc, err := h.service.CreateAccount(r.Context(), actorID, service.CreateAccountParams{
		Name:         req.Name,
		Email:        req.Email,
		MobileNumber: req.MobileNumber,
		Password:     req.Password,
		Role:         role,
		Address:      req.Address,
		ShopName:     req.ShopName,
		DealerCode:   req.DealerCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrPolicyViolation):
			writeError(w, http.StatusForbidden, err)
		case errors.Is(err, model.ErrAccountExists):
			writeError(w, http.StatusConflict, err)
		case errors.Is(err, model.ErrIdentity):
			writeError(w, http.StatusBadGateway, err)
		default:
			h.logger.Error("create account error", zap.Error(err))
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(acc))
}

// ListSubordinates возвращает учётные записи, созданные текущим актором.
func (h *Handler) ListSubordinates(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	accounts, err := h.service.ListSubordinates(r.Context(), actorID)
	if err != nil {
		h.logger.Error("list subordinates error", zap.Error(err), zap.String("actorID", actorID))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if len(accounts) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		resp = append(resp, toAccountResponse(&accounts[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetAccount возвращает учётную запись по идентификатору.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	acc, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("get account error", zap.Error(err), zap.String("accountID", accountID))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateAccountStatus переключает состояние учётной записи.
func (h *Handler) UpdateAccountStatus(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.SetAccountStatus(r.Context(), accountID, model.AccountStatus(req.Status))
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteAccount удаляет учётную запись и её внешнюю личность.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	err := h.service.DeleteAccount(r.Context(), accountID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrAccountNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, model.ErrIdentity):
			writeError(w, http.StatusBadGateway, err)
		default:
			h.logger.Error("delete account error", zap.Error(err), zap.String("accountID", accountID))
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

type transferRequest struct {
	TargetID  string `json:"targetId"`
	Quantity  int64  `json:"quantity"`
	Direction string `json:"direction"`
}

type transferResponse struct {
	Success             bool  `json:"success"`
	TransferredQuantity int64 `json:"transferredQuantity"`
}

// Transfer перемещает коды между текущим актором и целевой учётной записью.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	result, err := h.service.Transfer(r.Context(), actorID, req.TargetID, req.Quantity, model.Direction(req.Direction))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidQuantity), errors.Is(err, model.ErrInvalidDirection):
			writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, model.ErrAccountNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, model.ErrInsufficientBalance):
			writeError(w, http.StatusPaymentRequired, err)
		case errors.Is(err, model.ErrInsufficientCodes):
			writeError(w, http.StatusConflict, err)
		case errors.Is(err, model.ErrTransferFailed):
			writeError(w, http.StatusServiceUnavailable, err)
		default:
			h.logger.Error("transfer error", zap.Error(err),
				zap.String("actorID", actorID), zap.String("targetID", req.TargetID))
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, transferResponse{
		Success:             true,
		TransferredQuantity: result.Quantity,
	})
}

type transferRecordResponse struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	To       string `json:"to"`
	FromID   string `json:"fromUid"`
	ToID     string `json:"toUid"`
	Quantity int64  `json:"quantity"`
	Type     string `json:"type"`
	Date     string `json:"date"`
}

// ListTransfers возвращает журнал перемещений учётной записи.
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	transfers, err := h.service.ListTransfers(r.Context(), accountID)
	if err != nil {
		h.logger.Error("list transfers error", zap.Error(err), zap.String("accountID", accountID))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if len(transfers) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]transferRecordResponse, 0, len(transfers))
	for _, tr := range transfers {
		resp = append(resp, transferRecordResponse{
			ID:       tr.ID,
			From:     tr.FromName,
			To:       tr.ToName,
			FromID:   tr.FromID,
			ToID:     tr.ToID,
			Quantity: tr.Quantity,
			Type:     string(tr.Type),
			Date:     tr.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type codeResponse struct {
	ID       string `json:"id"`
	Token    string `json:"code"`
	IssuedBy string `json:"generatedBy"`
	IssuedAt string `json:"generatedAt"`
	Status   string `json:"status"`
}

// ListCodes возвращает доступные коды учётной записи.
func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	codes, err := h.service.ListCodes(r.Context(), accountID)
	if err != nil {
		h.logger.Error("list codes error", zap.Error(err), zap.String("accountID", accountID))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if len(codes) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]codeResponse, 0, len(codes))
	for _, c := range codes {
		resp = append(resp, codeResponse{
			ID:       c.ID,
			Token:    c.Token,
			IssuedBy: c.IssuedBy,
			IssuedAt: c.IssuedAt.Format(time.RFC3339),
			Status:   string(c.Status),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
