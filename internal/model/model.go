// Package model содержит доменные сущности витрины кафе.
package model

import "time"

// Role описывает уровень доступа сотрудника в админке.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleOwner      Role = "owner"
	RoleSuperadmin Role = "superadmin"
)

// ParseRole преобразует строку в роль и сообщает, известна ли она.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleOwner, RoleSuperadmin:
		return Role(s), true
	}
	return "", false
}

// CanManageCatalog сообщает, может ли роль изменять каталог товаров.
func (r Role) CanManageCatalog() bool {
	return r == RoleAdmin || r == RoleOwner || r == RoleSuperadmin
}

// CanManageAccess сообщает, может ли роль открывать управление доступом.
func (r Role) CanManageAccess() bool {
	return r == RoleOwner || r == RoleSuperadmin
}

// CanGrant сообщает, может ли роль выдать другому сотруднику роль target.
// Суперадмин выдаёт admin и owner, владелец — только admin.
// Роль superadmin зарезервирована и не выдаётся никем.
func (r Role) CanGrant(target Role) bool {
	switch r {
	case RoleSuperadmin:
		return target == RoleAdmin || target == RoleOwner
	case RoleOwner:
		return target == RoleAdmin
	}
	return false
}

// Category представляет категорию меню.
type Category struct {
	ID    string
	Name  string
	Label string
}

// DisplayName возвращает отображаемое имя категории:
// label, если он задан, иначе name.
func (c Category) DisplayName() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

// Product представляет товар каталога. Цена хранится в копейках.
type Product struct {
	ID          string
	CategoryID  string
	Name        string
	Price       int64
	Description string
	ImageURL    string
	IsActive    bool
}

// CartItem описывает позицию корзины: товар и его количество.
type CartItem struct {
	Product  Product
	Quantity int
}

// DeliveryType описывает способ получения заказа.
type DeliveryType string

const (
	DeliveryPickup  DeliveryType = "pickup"
	DeliveryCourier DeliveryType = "courier"
	DeliveryPost    DeliveryType = "post"
)

// Valid сообщает, известен ли способ получения.
func (d DeliveryType) Valid() bool {
	return d == DeliveryPickup || d == DeliveryCourier || d == DeliveryPost
}

// NeedsAddress сообщает, требуется ли адрес доставки для данного способа получения.
func (d DeliveryType) NeedsAddress() bool {
	return d != DeliveryPickup
}

// CheckoutDetails содержит контактные данные покупателя при оформлении заказа.
type CheckoutDetails struct {
	Name         string
	Phone        string
	Email        string
	Address      string
	Notes        string
	DeliveryType DeliveryType
}

// Order описывает заголовок заказа. TotalPrice фиксируется в момент
// оформления и далее не пересчитывается.
type Order struct {
	ID             string
	TotalPrice     int64
	Name           string
	Phone          string
	Email          string
	Address        string
	Notes          string
	DeliveryType   DeliveryType
	TelegramUserID *int64
	CreatedAt      time.Time
}

// OrderLineItem описывает позицию заказа. UnitPrice — цена товара
// на момент оформления, независимая от последующих правок каталога.
type OrderLineItem struct {
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice int64
}

// AdminUser представляет сотрудника с доступом к админке.
type AdminUser struct {
	TelegramID int64
	Name       string
	Role       Role
}

// OrderNotification описывает отложенное уведомление покупателю о принятом заказе.
type OrderNotification struct {
	OrderID        string
	TelegramUserID int64
}
