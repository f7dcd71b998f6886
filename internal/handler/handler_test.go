package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/igorprost60-bit/cafe-app/internal/middleware"
	"github.com/igorprost60-bit/cafe-app/internal/model"
	"github.com/igorprost60-bit/cafe-app/internal/repository"
	"github.com/igorprost60-bit/cafe-app/internal/service"
	"github.com/igorprost60-bit/cafe-app/internal/validation"
)

type stubService struct {
	menu    *service.Menu
	menuErr error

	submitOrderID string
	submitErr     error
	gotItems      []model.CartItem
	gotDetails    model.CheckoutDetails
	gotUserID     *int64

	mediaCT   string
	mediaData []byte
	mediaErr  error

	role      model.Role
	roleFound bool
	roleErr   error

	adminMenu    *service.Menu
	adminMenuErr error

	createCategoryID  string
	createCategoryErr error

	createProductID  string
	createProductErr error
	gotProductInput  service.ProductInput

	toggleErr error

	uploadURL string
	uploadErr error

	adminsList    []model.AdminUser
	listAdminsErr error

	addAdminErr error

	removeAdminErr error
	removedID      int64

	orphans    []model.Order
	orphansErr error
}

func (s *stubService) GetMenu(ctx context.Context) (*service.Menu, error) {
	return s.menu, s.menuErr
}

func (s *stubService) SubmitOrder(ctx context.Context, items []model.CartItem, details model.CheckoutDetails, telegramUserID *int64) (string, error) {
	s.gotItems = items
	s.gotDetails = details
	s.gotUserID = telegramUserID
	return s.submitOrderID, s.submitErr
}

func (s *stubService) GetMedia(ctx context.Context, key string) (string, []byte, error) {
	return s.mediaCT, s.mediaData, s.mediaErr
}

func (s *stubService) ResolveRole(ctx context.Context, telegramID int64) (model.Role, bool, error) {
	return s.role, s.roleFound, s.roleErr
}

func (s *stubService) GetAdminCatalog(ctx context.Context, actorID int64) (*service.Menu, error) {
	return s.adminMenu, s.adminMenuErr
}

func (s *stubService) CreateCategory(ctx context.Context, actorID int64, name, label string) (string, error) {
	return s.createCategoryID, s.createCategoryErr
}

func (s *stubService) CreateProduct(ctx context.Context, actorID int64, in service.ProductInput) (string, error) {
	s.gotProductInput = in
	return s.createProductID, s.createProductErr
}

func (s *stubService) ToggleProductActivity(ctx context.Context, actorID int64, productID string, isActive bool) error {
	return s.toggleErr
}

func (s *stubService) UploadImage(ctx context.Context, actorID int64, originalName, contentType string, data []byte) (string, error) {
	return s.uploadURL, s.uploadErr
}

func (s *stubService) ListAdmins(ctx context.Context, actorID int64) ([]model.AdminUser, error) {
	return s.adminsList, s.listAdminsErr
}

func (s *stubService) AddAdmin(ctx context.Context, actorID int64, admin model.AdminUser) error {
	return s.addAdminErr
}

func (s *stubService) RemoveAdmin(ctx context.Context, actorID, targetID int64) error {
	s.removedID = targetID
	return s.removeAdminErr
}

func (s *stubService) ListOrphanOrders(ctx context.Context, actorID int64) ([]model.Order, error) {
	return s.orphans, s.orphansErr
}

const testBotToken = "12345:test-token"

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware(testBotToken)

	return NewHandler(svc, logger, auth)
}

// signInitData собирает initData с корректной подписью WebApp для тестов.
func signInitData(botToken string, values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}

	secretMac := hmac.New(sha256.New, []byte("WebAppData"))
	secretMac.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secretMac.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))

	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func adminInitData(userID int64) string {
	v := url.Values{}
	v.Set("auth_date", "1700000000")
	v.Set("user", fmt.Sprintf(`{"id":%d,"first_name":"Админ"}`, userID))
	return signInitData(testBotToken, v)
}

func TestGetMenu_DisplayNameFallback(t *testing.T) {
	svc := &stubService{
		menu: &service.Menu{
			Categories: []model.Category{
				{ID: "c1", Name: "drinks", Label: "Напитки"},
				{ID: "c2", Name: "bakery"},
			},
			Products: []model.Product{
				{ID: "p1", CategoryID: "c1", Name: "Кофе", Price: 500, IsActive: true},
			},
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/menu", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp menuResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Categories[0].DisplayName != "Напитки" {
		t.Fatalf("displayName = %q, want label", resp.Categories[0].DisplayName)
	}
	if resp.Categories[1].DisplayName != "bakery" {
		t.Fatalf("displayName = %q, want name fallback", resp.Categories[1].DisplayName)
	}
}

func TestSubmitOrder_MergesDuplicateLines(t *testing.T) {
	svc := &stubService{submitOrderID: "ord_1"}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(submitOrderRequest{
		Items: []orderItemRequest{
			{ProductID: "a", Name: "Кофе", Price: 500, Quantity: 2},
			{ProductID: "a", Name: "Кофе", Price: 500, Quantity: 1},
			{ProductID: "b", Name: "Круассан", Price: 300, Quantity: 1},
			{ProductID: "c", Name: "Чай", Price: 200, Quantity: 0},
		},
		Name:         "Иван",
		Phone:        "+7900",
		DeliveryType: "pickup",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp submitOrderResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.OrderID != "ord_1" {
		t.Fatalf("response = %+v", resp)
	}

	if len(svc.gotItems) != 2 {
		t.Fatalf("items = %d, want 2 after merge: %+v", len(svc.gotItems), svc.gotItems)
	}
	if svc.gotItems[0].Product.ID != "a" || svc.gotItems[0].Quantity != 3 {
		t.Fatalf("merged entry = %+v, want product a qty 3", svc.gotItems[0])
	}
	if svc.gotUserID != nil {
		t.Fatalf("anonymous order must not carry a telegram user id")
	}
}

func TestSubmitOrder_ValidationErrorCode(t *testing.T) {
	svc := &stubService{submitErr: validation.ErrAddressRequired}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(submitOrderRequest{
		Items:        []orderItemRequest{{ProductID: "a", Price: 500, Quantity: 1}},
		Name:         "Иван",
		Phone:        "+7900",
		DeliveryType: "courier",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != codeValidation {
		t.Fatalf("code = %q, want %q", resp.Code, codeValidation)
	}
}

func TestSubmitOrder_PartialOrderHasDistinctCode(t *testing.T) {
	partialErr := fmt.Errorf("%w: order ord_2: insert rejected", service.ErrOrderPartiallySaved)

	cases := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"partial order", partialErr, codePartialOrder},
		{"full persistence failure", errors.New("insert rejected"), codePersistence},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{submitErr: tc.err}
			h := newTestHandler(t, svc)

			body, _ := json.Marshal(submitOrderRequest{
				Items:        []orderItemRequest{{ProductID: "a", Price: 500, Quantity: 1}},
				Name:         "Иван",
				Phone:        "+7900",
				DeliveryType: "pickup",
			})

			req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			h.SetupRouter().ServeHTTP(rec, req)

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
			}

			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", resp.Code, tc.wantCode)
			}
		})
	}
}

func TestGetRole_Anonymous(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/role", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp roleResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Role != nil {
		t.Fatalf("anonymous role = %v, want null", *resp.Role)
	}
}

func TestAdminRoutes_RequireAuth(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/categories", strings.NewReader(`{"name":"Напитки"}`))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestListAdmins_ForbiddenMapsToNotFound(t *testing.T) {
	svc := &stubService{listAdminsErr: service.ErrForbidden}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/access", nil)
	req.Header.Set("X-Telegram-Init-Data", adminInitData(42))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d (fail-closed)", rec.Code, http.StatusNotFound)
	}
}

func TestRemoveAdmin_ReservedConflict(t *testing.T) {
	svc := &stubService{removeAdminErr: service.ErrReservedAdmin}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/access/999", nil)
	req.Header.Set("X-Telegram-Init-Data", adminInitData(42))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}

	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != codeReservedAdmin {
		t.Fatalf("code = %q, want %q", resp.Code, codeReservedAdmin)
	}
	if svc.removedID != 999 {
		t.Fatalf("target id = %d, want 999", svc.removedID)
	}
}

func TestCreateProduct_DefaultsToActive(t *testing.T) {
	svc := &stubService{createProductID: "prod_1"}
	h := newTestHandler(t, svc)

	body := `{"categoryId":"c1","name":"Кофе","price":50000}`

	req := httptest.NewRequest(http.MethodPost, "/api/admin/products", strings.NewReader(body))
	req.Header.Set("X-Telegram-Init-Data", adminInitData(42))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if !svc.gotProductInput.IsActive {
		t.Fatalf("product must default to active")
	}
}

func TestAddAdmin_UnknownRoleRejected(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	body := `{"telegramId":2,"name":"Пётр","role":"moderator"}`

	req := httptest.NewRequest(http.MethodPost, "/api/admin/access", strings.NewReader(body))
	req.Header.Set("X-Telegram-Init-Data", adminInitData(42))
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestServeMedia(t *testing.T) {
	svc := &stubService{mediaCT: "image/png", mediaData: []byte{1, 2, 3}}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/media/123_latte.png", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content-type = %q, want image/png", ct)
	}
}

func TestServeMedia_NotFound(t *testing.T) {
	svc := &stubService{mediaErr: repository.ErrMediaNotFound}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/media/missing.png", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
