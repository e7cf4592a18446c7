package domain

// Product представляет товар из каталога.
type Product struct {
	// Code — натуральный ключ, задаётся вызывающей стороной, а не хранилищем.
	Code string
	// Name — наименование товара.
	Name string
	// UnitPriceMinor — цена за единицу в минимальных денежных единицах.
	UnitPriceMinor int64
	// Notes — произвольный комментарий.
	Notes string
	// Version — токен optimistic locking.
	Version int64
}
