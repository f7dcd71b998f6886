// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"strings"

	"github.com/igorprost60-bit/cafe-app/internal/model"
)

// ErrEmptyCart возвращается при попытке оформить заказ с пустой корзиной.
var (
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNameRequired возвращается, если имя покупателя не заполнено.
	ErrNameRequired = errors.New("name is required")
	// ErrPhoneRequired возвращается, если телефон покупателя не заполнен.
	ErrPhoneRequired = errors.New("phone is required")
	// ErrAddressRequired возвращается, если для доставки не указан адрес.
	ErrAddressRequired = errors.New("address is required for delivery")
	// ErrUnknownDelivery возвращается при неизвестном способе получения.
	ErrUnknownDelivery = errors.New("unknown delivery type")
	// ErrEmptyCategoryName возвращается при создании категории с пустым именем.
	ErrEmptyCategoryName = errors.New("category name is empty")
	// ErrEmptyProductName возвращается при создании товара с пустым именем.
	ErrEmptyProductName = errors.New("product name is empty")
	// ErrNegativePrice возвращается при создании товара с отрицательной ценой.
	ErrNegativePrice = errors.New("product price is negative")
	// ErrEmptyFile возвращается при загрузке пустого файла изображения.
	ErrEmptyFile = errors.New("image file is empty")
)

// IsValidationError сообщает, относится ли ошибка к ошибкам валидации входных данных.
// Такие ошибки возвращаются вызывающему сразу, без обращения к хранилищу.
func IsValidationError(err error) bool {
	for _, e := range []error{
		ErrEmptyCart,
		ErrNameRequired,
		ErrPhoneRequired,
		ErrAddressRequired,
		ErrUnknownDelivery,
		ErrEmptyCategoryName,
		ErrEmptyProductName,
		ErrNegativePrice,
		ErrEmptyFile,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// NormalizeCheckout обрезает пробелы во всех полях контактных данных.
func NormalizeCheckout(d model.CheckoutDetails) model.CheckoutDetails {
	d.Name = strings.TrimSpace(d.Name)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Email = strings.TrimSpace(d.Email)
	d.Address = strings.TrimSpace(d.Address)
	d.Notes = strings.TrimSpace(d.Notes)
	return d
}

// ValidateCheckout проверяет снимок корзины и контактные данные перед
// оформлением заказа. Адрес обязателен ровно тогда, когда способ
// получения отличается от самовывоза.
func ValidateCheckout(items []model.CartItem, d model.CheckoutDetails) error {
	if len(items) == 0 {
		return ErrEmptyCart
	}
	if !d.DeliveryType.Valid() {
		return ErrUnknownDelivery
	}
	if strings.TrimSpace(d.Name) == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(d.Phone) == "" {
		return ErrPhoneRequired
	}
	if d.DeliveryType.NeedsAddress() && strings.TrimSpace(d.Address) == "" {
		return ErrAddressRequired
	}
	return nil
}
