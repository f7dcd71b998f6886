// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/igorprost60-bit/cafe-app/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrCategoryNotFound возвращается, если категория с указанным id не существует.
var (
	ErrCategoryNotFound = errors.New("category not found")
	// ErrProductNotFound возвращается, если товар с указанным id не существует.
	ErrProductNotFound = errors.New("product not found")
	// ErrAdminNotFound возвращается, если сотрудник не найден в реестре доступа.
	ErrAdminNotFound = errors.New("admin not found")
	// ErrMediaNotFound возвращается, если файл с указанным ключом не загружался.
	ErrMediaNotFound = errors.New("media not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// ListCategories возвращает все категории меню.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, label FROM categories ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var res []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Label); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListProducts возвращает товары каталога. При activeOnly=true
// скрытые товары исключаются из выборки.
func (r *PostgresRepository) ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	q := `SELECT id, category_id, name, price, description, image_url, is_active
	      FROM products`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Price, &p.Description, &p.ImageURL, &p.IsActive); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateCategory создаёт категорию и возвращает её идентификатор.
func (r *PostgresRepository) CreateCategory(ctx context.Context, name, label string) (string, error) {
	id := uuid.NewString()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO categories (id, name, label) VALUES ($1, $2, $3)`,
		id, name, label,
	)
	if err != nil {
		return "", fmt.Errorf("insert category: %w", err)
	}

	return id, nil
}

// CreateProduct создаёт товар и возвращает его идентификатор.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p model.Product) (string, error) {
	id := uuid.NewString()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (id, category_id, name, price, description, image_url, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, p.CategoryID, p.Name, p.Price, p.Description, p.ImageURL, p.IsActive,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return "", fmt.Errorf("%w: %s", ErrCategoryNotFound, p.CategoryID)
		}
		return "", fmt.Errorf("insert product: %w", err)
	}

	return id, nil
}

// SetProductActivity переключает видимость товара, не затрагивая остальные поля.
func (r *PostgresRepository) SetProductActivity(ctx context.Context, productID string, isActive bool) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE products SET is_active = $2 WHERE id = $1`,
		productID, isActive,
	)
	if err != nil {
		return fmt.Errorf("update product activity: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	return nil
}

// CreateOrderHeader сохраняет заголовок заказа и возвращает присвоенный идентификатор.
func (r *PostgresRepository) CreateOrderHeader(ctx context.Context, o model.Order) (string, error) {
	id := uuid.NewString()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO orders (id, total_price, name, phone, email, address, notes, delivery_type, telegram_user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, o.TotalPrice, o.Name, o.Phone, o.Email, o.Address, o.Notes, string(o.DeliveryType), o.TelegramUserID,
	)
	if err != nil {
		return "", fmt.Errorf("insert order: %w", err)
	}

	return id, nil
}

// CreateOrderItems сохраняет позиции заказа одним батчем.
// Вызывается строго после успешной записи заголовка.
func (r *PostgresRepository) CreateOrderItems(ctx context.Context, items []model.OrderLineItem) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(
			`INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4)`,
			it.OrderID, it.ProductID, it.Quantity, it.UnitPrice,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range items {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

// ListOrphanOrders возвращает заголовки заказов, у которых нет ни одной позиции.
// Такие записи появляются, если вторая из двух зависимых записей заказа не прошла.
func (r *PostgresRepository) ListOrphanOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.total_price, o.name, o.phone, o.email, o.address, o.notes, o.delivery_type, o.telegram_user_id, o.created_at
		 FROM orders o
		 LEFT JOIN order_items i ON i.order_id = o.id
		 WHERE i.order_id IS NULL
		 ORDER BY o.created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("select orphan orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		var (
			o        model.Order
			delivery string
		)
		if err := rows.Scan(&o.ID, &o.TotalPrice, &o.Name, &o.Phone, &o.Email, &o.Address, &o.Notes, &delivery, &o.TelegramUserID, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan orphan order: %w", err)
		}
		o.DeliveryType = model.DeliveryType(delivery)
		res = append(res, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetAdmin возвращает запись сотрудника по его Telegram ID.
func (r *PostgresRepository) GetAdmin(ctx context.Context, telegramID int64) (*model.AdminUser, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT telegram_id, name, role FROM admins WHERE telegram_id = $1`,
		telegramID,
	)

	var (
		a    model.AdminUser
		role string
	)
	if err := row.Scan(&a.TelegramID, &a.Name, &role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	a.Role = model.Role(role)

	return &a, nil
}

// ListAdmins возвращает всех сотрудников реестра доступа.
func (r *PostgresRepository) ListAdmins(ctx context.Context) ([]model.AdminUser, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT telegram_id, name, role FROM admins ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("select admins: %w", err)
	}
	defer rows.Close()

	var res []model.AdminUser
	for rows.Next() {
		var (
			a    model.AdminUser
			role string
		)
		if err := rows.Scan(&a.TelegramID, &a.Name, &role); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		a.Role = model.Role(role)
		res = append(res, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpsertAdmin сохраняет запись сотрудника. Повторная запись того же
// Telegram ID перезаписывает имя и роль: последняя запись выигрывает.
func (r *PostgresRepository) UpsertAdmin(ctx context.Context, a model.AdminUser) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO admins (telegram_id, name, role) VALUES ($1, $2, $3)
		 ON CONFLICT (telegram_id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role`,
		a.TelegramID, a.Name, string(a.Role),
	)
	if err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}

	return nil
}

// DeleteAdmin удаляет сотрудника из реестра доступа.
func (r *PostgresRepository) DeleteAdmin(ctx context.Context, telegramID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM admins WHERE telegram_id = $1`,
		telegramID,
	)
	if err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrAdminNotFound, telegramID)
	}

	return nil
}

// SaveMedia сохраняет загруженный файл под указанным ключом.
func (r *PostgresRepository) SaveMedia(ctx context.Context, key, contentType string, data []byte) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO media (key, content_type, data) VALUES ($1, $2, $3)`,
		key, contentType, data,
	)
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}

	return nil
}

// GetMedia возвращает содержимое файла и его content-type по ключу.
func (r *PostgresRepository) GetMedia(ctx context.Context, key string) (string, []byte, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT content_type, data FROM media WHERE key = $1`,
		key,
	)

	var (
		contentType string
		data        []byte
	)
	if err := row.Scan(&contentType, &data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, ErrMediaNotFound
		}
		return "", nil, fmt.Errorf("get media: %w", err)
	}

	return contentType, data, nil
}

// EnqueueOrderNotification ставит уведомление о принятом заказе в очередь отправки.
// Повторная постановка для того же заказа игнорируется: отправка идемпотентна по id заказа.
func (r *PostgresRepository) EnqueueOrderNotification(ctx context.Context, orderID string, telegramUserID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO order_notifications (order_id, telegram_user_id) VALUES ($1, $2)
		 ON CONFLICT (order_id) DO NOTHING`,
		orderID, telegramUserID,
	)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}

	return nil
}

// ListPendingNotifications возвращает неотправленные уведомления.
func (r *PostgresRepository) ListPendingNotifications(ctx context.Context, limit int) ([]model.OrderNotification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT order_id, telegram_user_id
		 FROM order_notifications
		 WHERE sent_at IS NULL
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending notifications: %w", err)
	}
	defer rows.Close()

	var res []model.OrderNotification
	for rows.Next() {
		var n model.OrderNotification
		if err := rows.Scan(&n.OrderID, &n.TelegramUserID); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkNotificationSent помечает уведомление отправленным.
func (r *PostgresRepository) MarkNotificationSent(ctx context.Context, orderID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE order_notifications SET sent_at = now() WHERE order_id = $1`,
		orderID,
	)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}

	return nil
}

// EnsureSuperadmin гарантирует присутствие зарезервированного суперадмина в реестре.
func (r *PostgresRepository) EnsureSuperadmin(ctx context.Context, telegramID int64, name string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO admins (telegram_id, name, role) VALUES ($1, $2, $3)
		 ON CONFLICT (telegram_id) DO UPDATE SET role = EXCLUDED.role`,
		telegramID, name, string(model.RoleSuperadmin),
	)
	if err != nil {
		return fmt.Errorf("ensure superadmin: %w", err)
	}

	return nil
}
