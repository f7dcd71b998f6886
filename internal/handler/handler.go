// Package handler содержит HTTP-обработчики API витрины кафе.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/igorprost60-bit/cafe-app/internal/cart"
	"github.com/igorprost60-bit/cafe-app/internal/middleware"
	"github.com/igorprost60-bit/cafe-app/internal/model"
	"github.com/igorprost60-bit/cafe-app/internal/repository"
	"github.com/igorprost60-bit/cafe-app/internal/service"
	"github.com/igorprost60-bit/cafe-app/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	GetMenu(ctx context.Context) (*service.Menu, error)
	SubmitOrder(ctx context.Context, items []model.CartItem, details model.CheckoutDetails, telegramUserID *int64) (string, error)
	GetMedia(ctx context.Context, key string) (string, []byte, error)
	ResolveRole(ctx context.Context, telegramID int64) (model.Role, bool, error)
	GetAdminCatalog(ctx context.Context, actorID int64) (*service.Menu, error)
	CreateCategory(ctx context.Context, actorID int64, name, label string) (string, error)
	CreateProduct(ctx context.Context, actorID int64, in service.ProductInput) (string, error)
	ToggleProductActivity(ctx context.Context, actorID int64, productID string, isActive bool) error
	UploadImage(ctx context.Context, actorID int64, originalName, contentType string, data []byte) (string, error)
	ListAdmins(ctx context.Context, actorID int64) ([]model.AdminUser, error)
	AddAdmin(ctx context.Context, actorID int64, admin model.AdminUser) error
	RemoveAdmin(ctx context.Context, actorID, targetID int64) error
	ListOrphanOrders(ctx context.Context, actorID int64) ([]model.Order, error)
}

// Handler реализует HTTP-обработчики API витрины кафе.
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

// Машинные коды ошибок в теле ответа. Клиент отличает по ним частично
// записанный заказ от полного отказа хранилища.
const (
	codeValidation    = "validation_error"
	codePersistence   = "persistence_error"
	codePartialOrder  = "partial_order"
	codeNotFound      = "not_found"
	codeReservedAdmin = "reserved_admin"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string) {
	h.writeJSON(w, status, errorResponse{Success: false, Error: msg, Code: code})
}

// serviceError переводит ошибку сервиса в HTTP-ответ. Недостаточная роль
// отвечает 404: закрытый ресурс для такого вызывающего не существует.
func (h *Handler) serviceError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case validation.IsValidationError(err):
		h.writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, service.ErrOrderPartiallySaved):
		h.logger.Error(logMsg, zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, codePartialOrder, err.Error())
	case errors.Is(err, service.ErrForbidden):
		h.writeError(w, http.StatusNotFound, codeNotFound, http.StatusText(http.StatusNotFound))
	case errors.Is(err, service.ErrReservedAdmin):
		h.writeError(w, http.StatusConflict, codeReservedAdmin, err.Error())
	case errors.Is(err, repository.ErrCategoryNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrAdminNotFound):
		h.writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	default:
		h.logger.Error(logMsg, zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, codePersistence, err.Error())
	}
}

type categoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Label       string `json:"label,omitempty"`
	DisplayName string `json:"displayName"`
}

type productResponse struct {
	ID          string `json:"id"`
	CategoryID  string `json:"categoryId"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	IsActive    bool   `json:"isActive"`
}

type menuResponse struct {
	Categories []categoryResponse `json:"categories"`
	Products   []productResponse  `json:"products"`
}

func toMenuResponse(m *service.Menu) menuResponse {
	resp := menuResponse{
		Categories: make([]categoryResponse, 0, len(m.Categories)),
		Products:   make([]productResponse, 0, len(m.Products)),
	}
	for _, c := range m.Categories {
		resp.Categories = append(resp.Categories, categoryResponse{
			ID:          c.ID,
			Name:        c.Name,
			Label:       c.Label,
			DisplayName: c.DisplayName(),
		})
	}
	for _, p := range m.Products {
		resp.Products = append(resp.Products, productResponse{
			ID:          p.ID,
			CategoryID:  p.CategoryID,
			Name:        p.Name,
			Price:       p.Price,
			Description: p.Description,
			ImageURL:    p.ImageURL,
			IsActive:    p.IsActive,
		})
	}
	return resp
}

// GetMenu возвращает витрину: категории и активные товары.
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.service.GetMenu(r.Context())
	if err != nil {
		h.serviceError(w, err, "get menu error")
		return
	}

	h.writeJSON(w, http.StatusOK, toMenuResponse(menu))
}

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

type submitOrderRequest struct {
	Items        []orderItemRequest `json:"items"`
	Name         string             `json:"name"`
	Phone        string             `json:"phone"`
	Email        string             `json:"email"`
	Address      string             `json:"address"`
	Notes        string             `json:"notes"`
	DeliveryType string             `json:"deliveryType"`
}

type submitOrderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
}

// SubmitOrder принимает снимок корзины и контактные данные и оформляет заказ.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	// Снимок прогоняется через корзину: дублирующиеся строки одного товара
	// сливаются в одну позицию, строки с нулевым количеством отбрасываются.
	c := cart.New()
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			continue
		}
		p := model.Product{ID: line.ProductID, Name: line.Name, Price: line.Price}
		c.Add(p)
		c.SetQuantity(p.ID, c.Quantity(p.ID)+line.Quantity-1)
	}

	details := model.CheckoutDetails{
		Name:         req.Name,
		Phone:        req.Phone,
		Email:        req.Email,
		Address:      req.Address,
		Notes:        req.Notes,
		DeliveryType: model.DeliveryType(req.DeliveryType),
	}

	var telegramUserID *int64
	if user, ok := middleware.GetTelegramUserFromContext(r.Context()); ok {
		telegramUserID = &user.ID
	}

	orderID, err := h.service.SubmitOrder(r.Context(), c.Snapshot(), details, telegramUserID)
	if err != nil {
		h.serviceError(w, err, "submit order error")
		return
	}

	h.writeJSON(w, http.StatusCreated, submitOrderResponse{Success: true, OrderID: orderID})
}

type roleResponse struct {
	Role *string `json:"role"`
}

// GetRole возвращает роль текущего пользователя или null, если роли нет.
// По этому ответу клиент решает, показывать ли вход в админку.
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetTelegramUserFromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusOK, roleResponse{})
		return
	}

	role, found, err := h.service.ResolveRole(r.Context(), user.ID)
	if err != nil {
		h.serviceError(w, err, "resolve role error")
		return
	}

	if !found {
		h.writeJSON(w, http.StatusOK, roleResponse{})
		return
	}

	roleStr := string(role)
	h.writeJSON(w, http.StatusOK, roleResponse{Role: &roleStr})
}

// ServeMedia отдаёт загруженный файл по его ключу.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	contentType, data, err := h.service.GetMedia(r.Context(), key)
	if err != nil {
		if errors.Is(err, repository.ErrMediaNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("serve media error", zap.Error(err), zap.String("key", key))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("write media response", zap.Error(err), zap.String("key", key))
	}
}
