// Package cart реализует корзину покупателя: чистые переходы состояния без I/O.
package cart

import "github.com/igorprost60-bit/cafe-app/internal/model"

// Cart хранит выбранные покупателем позиции. Для каждого товара
// в корзине существует не более одной позиции, количество всегда >= 1.
// Порядок позиций соответствует порядку добавления.
type Cart struct {
	items []model.CartItem
}

// New создаёт пустую корзину.
func New() *Cart {
	return &Cart{}
}

// Add добавляет товар в корзину. Если позиция для этого товара уже есть,
// её количество увеличивается на единицу.
func (c *Cart) Add(p model.Product) {
	for i := range c.items {
		if c.items[i].Product.ID == p.ID {
			c.items[i].Quantity++
			return
		}
	}
	c.items = append(c.items, model.CartItem{Product: p, Quantity: 1})
}

// SetQuantity устанавливает количество для товара. Значение <= 0
// удаляет позицию целиком: состояния "ноль штук" в корзине не бывает.
func (c *Cart) SetQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.Remove(productID)
		return
	}
	for i := range c.items {
		if c.items[i].Product.ID == productID {
			c.items[i].Quantity = quantity
			return
		}
	}
}

// Remove удаляет позицию из корзины. Отсутствие позиции не является ошибкой.
func (c *Cart) Remove(productID string) {
	for i := range c.items {
		if c.items[i].Product.ID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Quantity возвращает количество товара в корзине, 0 — если позиции нет.
func (c *Cart) Quantity(productID string) int {
	for i := range c.items {
		if c.items[i].Product.ID == productID {
			return c.items[i].Quantity
		}
	}
	return 0
}

// Len возвращает число позиций в корзине.
func (c *Cart) Len() int {
	return len(c.items)
}

// Total возвращает сумму корзины в копейках. Расчёт ведётся
// в целых числах, без плавающей точки.
func (c *Cart) Total() int64 {
	var sum int64
	for _, it := range c.items {
		sum += it.Product.Price * int64(it.Quantity)
	}
	return sum
}

// Snapshot возвращает неизменяемую копию содержимого корзины
// на момент вызова. Дальнейшие правки корзины снимок не затрагивают.
func (c *Cart) Snapshot() []model.CartItem {
	out := make([]model.CartItem, len(c.items))
	copy(out, c.items)
	return out
}
