// Package service реализует бизнес-логику витрины кафе.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/igorprost60-bit/cafe-app/internal/model"
	"github.com/igorprost60-bit/cafe-app/internal/repository"
	"github.com/igorprost60-bit/cafe-app/internal/validation"
)

// ErrOrderPartiallySaved возвращается, если заголовок заказа записан,
// а позиции записать не удалось. Такой заказ остаётся в хранилище без позиций
// и находится инструментами сверки отдельно от полного отказа.
var (
	ErrOrderPartiallySaved = errors.New("order saved without items")
	// ErrForbidden возвращается, если роль вызывающего недостаточна для операции.
	ErrForbidden = errors.New("operation not permitted")
	// ErrReservedAdmin возвращается при попытке изменить запись зарезервированного суперадмина.
	ErrReservedAdmin = errors.New("reserved superadmin entry is immutable")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	ListCategories(ctx context.Context) ([]model.Category, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error)
	CreateCategory(ctx context.Context, name, label string) (string, error)
	CreateProduct(ctx context.Context, p model.Product) (string, error)
	SetProductActivity(ctx context.Context, productID string, isActive bool) error
	CreateOrderHeader(ctx context.Context, o model.Order) (string, error)
	CreateOrderItems(ctx context.Context, items []model.OrderLineItem) error
	ListOrphanOrders(ctx context.Context) ([]model.Order, error)
	GetAdmin(ctx context.Context, telegramID int64) (*model.AdminUser, error)
	ListAdmins(ctx context.Context) ([]model.AdminUser, error)
	UpsertAdmin(ctx context.Context, a model.AdminUser) error
	DeleteAdmin(ctx context.Context, telegramID int64) error
	SaveMedia(ctx context.Context, key, contentType string, data []byte) error
	GetMedia(ctx context.Context, key string) (string, []byte, error)
	EnqueueOrderNotification(ctx context.Context, orderID string, telegramUserID int64) error
	ListPendingNotifications(ctx context.Context, limit int) ([]model.OrderNotification, error)
	MarkNotificationSent(ctx context.Context, orderID string) error
}

// Notifier описывает контракт отправки уведомлений покупателям.
type Notifier interface {
	SendOrderAccepted(ctx context.Context, chatID int64, orderID string) error
}

// Service содержит бизнес-логику витрины кафе.
type Service struct {
	repo         Repository
	notifier     Notifier
	logger       *zap.Logger
	superadminID int64
	mediaBaseURL string
	callTimeout  time.Duration
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом уведомлений.
func NewService(repo Repository, notifier Notifier, logger *zap.Logger, superadminID int64, mediaBaseURL string, callTimeout time.Duration) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	return &Service{
		repo:         repo,
		notifier:     notifier,
		logger:       logger,
		superadminID: superadminID,
		mediaBaseURL: strings.TrimRight(mediaBaseURL, "/"),
		callTimeout:  callTimeout,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// withTimeout ограничивает каждое обращение к хранилищу настроенным таймаутом.
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.callTimeout)
}

// Menu содержит данные витрины: категории и активные товары.
type Menu struct {
	Categories []model.Category
	Products   []model.Product
}

// GetMenu загружает категории и товары параллельно: порядок получения
// двух выборок значения не имеет.
func (s *Service) GetMenu(ctx context.Context) (*Menu, error) {
	return s.loadCatalog(ctx, true)
}

func (s *Service) loadCatalog(ctx context.Context, activeOnly bool) (*Menu, error) {
	var menu Menu

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cctx, cancel := s.withTimeout(gctx)
		defer cancel()

		categories, err := s.repo.ListCategories(cctx)
		if err != nil {
			return err
		}
		menu.Categories = categories
		return nil
	})

	g.Go(func() error {
		pctx, cancel := s.withTimeout(gctx)
		defer cancel()

		products, err := s.repo.ListProducts(pctx, activeOnly)
		if err != nil {
			return err
		}
		menu.Products = products
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &menu, nil
}

// SubmitOrder проверяет снимок корзины и контактные данные, после чего
// сохраняет заказ двумя зависимыми записями: сначала заголовок, затем позиции.
// Запись позиций начинается только после того, как заголовку присвоен id.
// Возвращает идентификатор созданного заказа.
func (s *Service) SubmitOrder(ctx context.Context, items []model.CartItem, details model.CheckoutDetails, telegramUserID *int64) (string, error) {
	if err := validation.ValidateCheckout(items, details); err != nil {
		return "", err
	}

	details = validation.NormalizeCheckout(details)
	if !details.DeliveryType.NeedsAddress() {
		details.Address = ""
	}

	var total int64
	for _, it := range items {
		total += it.Product.Price * int64(it.Quantity)
	}

	order := model.Order{
		TotalPrice:     total,
		Name:           details.Name,
		Phone:          details.Phone,
		Email:          details.Email,
		Address:        details.Address,
		Notes:          details.Notes,
		DeliveryType:   details.DeliveryType,
		TelegramUserID: telegramUserID,
	}

	hctx, cancelHeader := s.withTimeout(ctx)
	defer cancelHeader()

	orderID, err := s.repo.CreateOrderHeader(hctx, order)
	if err != nil {
		return "", fmt.Errorf("create order header: %w", err)
	}

	lineItems := make([]model.OrderLineItem, 0, len(items))
	for _, it := range items {
		lineItems = append(lineItems, model.OrderLineItem{
			OrderID:   orderID,
			ProductID: it.Product.ID,
			Quantity:  it.Quantity,
			UnitPrice: it.Product.Price,
		})
	}

	ictx, cancelItems := s.withTimeout(ctx)
	defer cancelItems()

	if err := s.repo.CreateOrderItems(ictx, lineItems); err != nil {
		return "", fmt.Errorf("%w: order %s: %v", ErrOrderPartiallySaved, orderID, err)
	}

	if telegramUserID != nil {
		qctx, cancelQueue := s.withTimeout(ctx)
		defer cancelQueue()

		if err := s.repo.EnqueueOrderNotification(qctx, orderID, *telegramUserID); err != nil {
			// Заказ уже сохранён: сбой постановки уведомления не отменяет его.
			s.logger.Error("enqueue order notification", zap.Error(err), zap.String("orderID", orderID))
		}
	}

	return orderID, nil
}

// ListOrphanOrders возвращает заголовки заказов без позиций для сверки.
// Доступно владельцу и суперадмину.
func (s *Service) ListOrphanOrders(ctx context.Context, actorID int64) ([]model.Order, error) {
	if _, err := s.requireRole(ctx, actorID, model.Role.CanManageAccess); err != nil {
		return nil, err
	}

	rctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.repo.ListOrphanOrders(rctx)
}

// ResolveRole возвращает роль сотрудника по его Telegram ID.
// Для незарегистрированной личности роль отсутствует: это не ошибка,
// а состояние "нет привилегий".
func (s *Service) ResolveRole(ctx context.Context, telegramID int64) (model.Role, bool, error) {
	rctx, cancel := s.withTimeout(ctx)
	defer cancel()

	admin, err := s.repo.GetAdmin(rctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	return admin.Role, true, nil
}

// requireRole разрешает роль вызывающего и проверяет её предикатом allowed.
// Отсутствие роли и недостаточная роль неразличимы для вызывающего: ErrForbidden.
func (s *Service) requireRole(ctx context.Context, actorID int64, allowed func(model.Role) bool) (model.Role, error) {
	role, ok, err := s.ResolveRole(ctx, actorID)
	if err != nil {
		return "", err
	}
	if !ok || !allowed(role) {
		return "", ErrForbidden
	}
	return role, nil
}

// GetAdminCatalog возвращает каталог целиком, включая скрытые товары.
func (s *Service) GetAdminCatalog(ctx context.Context, actorID int64) (*Menu, error) {
	if _, err := s.requireRole(ctx, actorID, model.Role.CanManageCatalog); err != nil {
		return nil, err
	}

	return s.loadCatalog(ctx, false)
}

// CreateCategory создаёт категорию меню и возвращает её идентификатор.
func (s *Service) CreateCategory(ctx context.Context, actorID int64, name, label string) (string, error) {
	if _, err := s.requireRole(ctx, actorID, model.Role.CanManageCatalog); err != nil {
		return "", err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", validation.ErrEmptyCategoryName
	}

	rctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.repo.CreateCategory(rctx, name, strings.TrimSpace(label))
}

// ProductInput содержит данные для создания товара. Цена приходит в копейках
// и может быть дробной после пересчёта на клиенте.
type ProductInput struct {
	CategoryID  string
	Name        string
	Price       float64
	Description string
	ImageURL    string
	IsActive    bool
}

// CreateProduct создаёт товар и возвращает его идентификатор.
// Цена округляется до ближайшей целой копейки перед записью.
func (s *Service) CreateProduct(ctx context.Context, actorID int64, in ProductInput) (string, error) {
	if _, err := s.requireRole(ctx, actorID, model.Role.CanManageCatalog); err != nil {
		return "", err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", validation.ErrEmptyProductName
	}
	if in.Price < 0 {
		return "", validation.ErrNegativePrice
	}

	p := model.Product{
		CategoryID:  in.CategoryID,
		Name:        name,
		Price:       int64(math.Round(in.Price)),
		Description: strings.TrimSpace(in.Description),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		IsActive:    in.IsActive,
	}

	rctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.repo.CreateProduct(rctx, p)
}

// ToggleProductActivity переключает видимость товара на витрине.
// Остальные поля товара операция не затрагивает.
func (s *Service) ToggleProductActivity(ctx context.Context, actorID int64, productID string, isActive bool) error {
	if _, err := s.requireRole(ctx, actorID, model.Role.CanManageCatalog); err != nil {
		return err
	}

	rctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.repo.SetProductActivity(rctx, productID, isActive)
}

// UploadImage сохраняет изображение товара и возвращает публичный URL.
// Ключ файла собирается из метки времени и исходного имени, поэтому
// повторные загрузки одного файла не конфликтуют.
func (s *Service) UploadImage(ctx context.Context, actorID int64, originalName, contentType string, data []byte) (string, error) {
	if _, err := s.requireRole(ctx, actorID, model.Role.CanManageCatalog); err != nil {
		return "", err
	}

	if len(data) == 0 {
		return "", validation.ErrEmptyFile
	}

	key := makeMediaKey(originalName)

	rctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.repo.SaveMedia(rctx, key, contentType, data); err != nil {
		return "", err
	}

	return s.mediaBaseURL + "/media/" + key, nil
}

// GetMedia возвращает содержимое загруженного файла по ключу.
func (s *Service) GetMedia(ctx context.Context, key string) (string, []byte, error) {
	rctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.repo.GetMedia(rctx, key)
}

func makeMediaKey(originalName string) string {
	base := path.Base(strings.ReplaceAll(originalName, "\\", "/"))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	name := b.String()
	if name == "" || name == "." {
		name = "file"
	}

	return fmt.Sprintf("%d_%s", time.Now().UnixNano(), name)
}

// ListAdmins возвращает реестр сотрудников. Доступно владельцу и суперадмину.
func (s *Service) ListAdmins(ctx context.Context, actorID int64) ([]model.AdminUser, error) {
	if _, err := s.requireRole(ctx, actorID, model.Role.CanManageAccess); err != nil {
		return nil, err
	}

	rctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.repo.ListAdmins(rctx)
}

// AddAdmin добавляет сотрудника в реестр доступа. Владелец может выдать
// только роль admin, суперадмин — admin или owner. Повторная выдача тому же
// Telegram ID перезаписывает запись: последняя запись выигрывает.
func (s *Service) AddAdmin(ctx context.Context, actorID int64, admin model.AdminUser) error {
	actorRole, err := s.requireRole(ctx, actorID, model.Role.CanManageAccess)
	if err != nil {
		return err
	}

	if admin.TelegramID == s.superadminID {
		return ErrReservedAdmin
	}
	if !actorRole.CanGrant(admin.Role) {
		return ErrForbidden
	}

	admin.Name = strings.TrimSpace(admin.Name)
	if admin.TelegramID == 0 || admin.Name == "" {
		return fmt.Errorf("telegram id and name are required")
	}

	rctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.repo.UpsertAdmin(rctx, admin)
}

// RemoveAdmin удаляет сотрудника из реестра доступа.
// Зарезервированный суперадмин не удаляется независимо от роли вызывающего.
func (s *Service) RemoveAdmin(ctx context.Context, actorID, targetID int64) error {
	if targetID == s.superadminID {
		return ErrReservedAdmin
	}

	if _, err := s.requireRole(ctx, actorID, model.Role.CanManageAccess); err != nil {
		return err
	}

	rctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.repo.DeleteAdmin(rctx, targetID)
}

// StartNotificationDispatcher запускает фоновую отправку уведомлений о принятых заказах.
// Отправка идемпотентна по id заказа: повторная попытка для уже отправленного
// уведомления не выполняется и заказ заново не создаётся.
func (s *Service) StartNotificationDispatcher(ctx context.Context) {
	if s.notifier == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processNotificationBatch(ctx)
			}
		}
	}()
}

func (s *Service) processNotificationBatch(ctx context.Context) {
	lctx, cancel := s.withTimeout(ctx)
	pending, err := s.repo.ListPendingNotifications(lctx, 100)
	cancel()
	if err != nil {
		s.logger.Error("list pending notifications", zap.Error(err))
		return
	}

	for _, n := range pending {
		sctx, cancelSend := s.withTimeout(ctx)
		err := s.notifier.SendOrderAccepted(sctx, n.TelegramUserID, n.OrderID)
		cancelSend()
		if err != nil {
			// Отправка best-effort: сбой логируется, уведомление останется в очереди.
			s.logger.Warn("send order notification", zap.Error(err), zap.String("orderID", n.OrderID))
			continue
		}

		mctx, cancelMark := s.withTimeout(ctx)
		if err := s.repo.MarkNotificationSent(mctx, n.OrderID); err != nil {
			s.logger.Error("mark notification sent", zap.Error(err), zap.String("orderID", n.OrderID))
		}
		cancelMark()
	}
}
