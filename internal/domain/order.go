package domain

import (
	"strings"
	"time"
)

// OrderDetail представляет одну позицию заказа. Позиции не адресуются
// независимо: они живут и умирают вместе со своим заказом.
type OrderDetail struct {
	// DetailID назначается хранилищем при вставке.
	DetailID int64
	// OrderID — обратная ссылка на заказ-владелец.
	OrderID int64
	// ProductCode — код товара на момент заказа. Позиция с пустым кодом
	// считается незаполненной строкой и никогда не сохраняется.
	ProductCode string
	// ProductName — денормализованное наименование товара на момент заказа.
	ProductName string
	// UnitPriceMinor — цена за единицу на момент заказа.
	UnitPriceMinor int64
	// Quantity — количество единиц.
	Quantity int32
}

// Blank сообщает, является ли позиция незаполненной строкой.
func (d OrderDetail) Blank() bool {
	return strings.TrimSpace(d.ProductCode) == ""
}

// Amount возвращает сумму позиции: цена за единицу * количество.
func (d OrderDetail) Amount() int64 {
	return d.UnitPriceMinor * int64(d.Quantity)
}

// Order агрегирует заголовок заказа и его позиции. Заголовок и позиции
// всегда сохраняются как единое целое в одной транзакции.
type Order struct {
	ID        int64
	OrderDate time.Time
	// CustomerID ссылается на клиента; CustomerName фиксируется на момент
	// заказа и не перечитывается из справочника.
	CustomerID   int64
	CustomerName string
	// TotalAmountMinor — производное поле: сумма позиций. Пересчитывается
	// репозиторием при каждой записи, значение от вызывающей стороны не
	// принимается на веру.
	TotalAmountMinor int64
	Notes            string
	Version          int64
	Details          []OrderDetail
}

// PersistableDetails возвращает позиции, подлежащие сохранению:
// незаполненные строки отфильтровываются.
func (o *Order) PersistableDetails() []OrderDetail {
	result := make([]OrderDetail, 0, len(o.Details))
	for _, d := range o.Details {
		if d.Blank() {
			continue
		}
		result = append(result, d)
	}
	return result
}

// RecalculateTotal пересчитывает сумму заказа по сохраняемым позициям.
func (o *Order) RecalculateTotal() {
	var total int64
	for _, d := range o.PersistableDetails() {
		total += d.Amount()
	}
	o.TotalAmountMinor = total
}
