package domain

// Customer представляет клиента (получателя заказов).
type Customer struct {
	// ID назначается хранилищем при создании.
	ID int64
	// Name — отображаемое имя; список клиентов сортируется по нему.
	Name string
	// Phone — контактный телефон.
	Phone string
	// Notes — произвольный комментарий.
	Notes string
	// Version — токен optimistic locking: 1 при создании, +1 на каждое обновление.
	Version int64
}
