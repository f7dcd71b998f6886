package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/igorprost60-bit/cafe-app/internal/middleware"
	"github.com/igorprost60-bit/cafe-app/internal/model"
	"github.com/igorprost60-bit/cafe-app/internal/service"
)

const maxUploadSize = 10 << 20

// actor извлекает Telegram ID вызывающего из контекста запроса.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	user, ok := middleware.GetTelegramUserFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return 0, false
	}
	return user.ID, true
}

// AdminCatalog возвращает каталог целиком, включая скрытые товары.
func (h *Handler) AdminCatalog(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	menu, err := h.service.GetAdminCatalog(r.Context(), actorID)
	if err != nil {
		h.serviceError(w, err, "admin catalog error")
		return
	}

	h.writeJSON(w, http.StatusOK, toMenuResponse(menu))
}

type createCategoryRequest struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

type createdResponse struct {
	ID string `json:"id"`
}

// CreateCategory создаёт категорию меню.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	id, err := h.service.CreateCategory(r.Context(), actorID, req.Name, req.Label)
	if err != nil {
		h.serviceError(w, err, "create category error")
		return
	}

	h.writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

type createProductRequest struct {
	CategoryID  string  `json:"categoryId"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	ImageURL    string  `json:"imageUrl"`
	IsActive    *bool   `json:"isActive"`
}

// CreateProduct создаёт товар каталога.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	// Товар виден на витрине по умолчанию, если флаг не передан.
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	id, err := h.service.CreateProduct(r.Context(), actorID, service.ProductInput{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		IsActive:    isActive,
	})
	if err != nil {
		h.serviceError(w, err, "create product error")
		return
	}

	h.writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

type toggleActivityRequest struct {
	IsActive bool `json:"isActive"`
}

// ToggleProductActivity переключает видимость товара на витрине.
func (h *Handler) ToggleProductActivity(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "productID")

	var req toggleActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	if err := h.service.ToggleProductActivity(r.Context(), actorID, productID, req.IsActive); err != nil {
		h.serviceError(w, err, "toggle product activity error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type uploadResponse struct {
	URL string `json:"url"`
}

// UploadMedia принимает изображение товара и возвращает его публичный URL.
// Загрузка выполняется до создания товара: URL из ответа передаётся
// в поле imageUrl при создании.
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.writeError(w, http.StatusBadRequest, codeValidation, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, codeValidation, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, codeValidation, "read file")
		return
	}

	url, err := h.service.UploadImage(r.Context(), actorID, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		h.serviceError(w, err, "upload media error")
		return
	}

	h.writeJSON(w, http.StatusCreated, uploadResponse{URL: url})
}

type adminResponse struct {
	TelegramID int64  `json:"telegramId"`
	Name       string `json:"name"`
	Role       string `json:"role"`
}

// ListAdmins возвращает реестр сотрудников с доступом к админке.
func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	admins, err := h.service.ListAdmins(r.Context(), actorID)
	if err != nil {
		h.serviceError(w, err, "list admins error")
		return
	}

	resp := make([]adminResponse, 0, len(admins))
	for _, a := range admins {
		resp = append(resp, adminResponse{
			TelegramID: a.TelegramID,
			Name:       a.Name,
			Role:       string(a.Role),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type addAdminRequest struct {
	TelegramID int64  `json:"telegramId"`
	Name       string `json:"name"`
	Role       string `json:"role"`
}

// AddAdmin выдаёт сотруднику доступ к админке.
func (h *Handler) AddAdmin(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req addAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	role, known := model.ParseRole(req.Role)
	if !known {
		h.writeError(w, http.StatusBadRequest, codeValidation, "unknown role")
		return
	}

	err := h.service.AddAdmin(r.Context(), actorID, model.AdminUser{
		TelegramID: req.TelegramID,
		Name:       req.Name,
		Role:       role,
	})
	if err != nil {
		h.serviceError(w, err, "add admin error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveAdmin отзывает доступ сотрудника.
func (h *Handler) RemoveAdmin(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	targetID, err := strconv.ParseInt(chi.URLParam(r, "telegramID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, codeValidation, "invalid telegram id")
		return
	}

	if err := h.service.RemoveAdmin(r.Context(), actorID, targetID); err != nil {
		h.serviceError(w, err, "remove admin error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type orphanOrderResponse struct {
	ID         string `json:"id"`
	TotalPrice int64  `json:"totalPrice"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	CreatedAt  string `json:"createdAt"`
}

// ListOrphanOrders возвращает заголовки заказов без позиций для ручной сверки.
func (h *Handler) ListOrphanOrders(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrphanOrders(r.Context(), actorID)
	if err != nil {
		h.serviceError(w, err, "list orphan orders error")
		return
	}

	resp := make([]orphanOrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, orphanOrderResponse{
			ID:         o.ID,
			TotalPrice: o.TotalPrice,
			Name:       o.Name,
			Phone:      o.Phone,
			CreatedAt:  o.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}
