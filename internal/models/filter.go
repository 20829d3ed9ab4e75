package models

// Значения фильтра списка пользователей.
const (
	FilterAll    = "all"
	FilterActive = "active"
	FilterBanned = "banned"
)

// Значения сортировки списка пользователей.
const (
	SortCreatedDesc = "created_desc"
	SortCreatedAsc  = "created_asc"
	SortIDAsc       = "id_asc"
)

// UsersPageSize размер страницы списка пользователей.
const UsersPageSize = 10

// ListUsersQuery параметры постраничного списка пользователей.
// Фильтр и поисковая строка комбинируются через AND, поиск ищет подстроку
// в идентификаторе, username и отображаемом имени без учёта регистра.
type ListUsersQuery struct {
	Page   int    // Номер страницы, с нуля
	Filter string // all, active или banned
	Sort   string // created_desc, created_asc или id_asc
	Search string // Поисковая подстрока, пустая строка — без поиска
}
