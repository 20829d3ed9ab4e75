package telegram

import "strings"

// Kind тип действия, закодированного в callback-данных inline-кнопки.
type Kind string

// Виды действий. Кнопка несёт префикс вида и аргумент после подчёркивания.
const (
	KindTemplate Kind = "tpl"    // выбрать шаблон, аргумент — имя шаблона
	KindDNS      Kind = "dns"    // выбрать DNS-провайдера, аргумент — провайдер
	KindDownload Kind = "down"   // повторно скачать конфигурацию, аргумент — id
	KindDelete   Kind = "del"    // удалить конфигурацию, аргумент — id
	KindBan      Kind = "ban"    // заблокировать пользователя, аргумент — account id
	KindUnban    Kind = "unban"  // разблокировать пользователя, аргумент — account id
	KindPage     Kind = "page"   // страница списка пользователей, аргумент — номер
	KindFilter   Kind = "filter" // фильтр списка пользователей
	KindSort     Kind = "sort"   // сортировка списка пользователей
	KindTheme    Kind = "theme"  // сменить тему, аргумент — light/dark
	KindLang     Kind = "lang"   // сменить язык, аргумент — код языка
	KindMenu     Kind = "menu"   // вернуться в главное меню, без аргумента
)

// Action разобранное действие кнопки.
type Action struct {
	Kind Kind
	Arg  string
}

// Data кодирует действие обратно в callback-данные.
func (a Action) Data() string {
	if a.Arg == "" {
		return string(a.Kind)
	}
	return string(a.Kind) + "_" + a.Arg
}

var knownKinds = []Kind{
	KindTemplate, KindDNS, KindDownload, KindDelete, KindBan, KindUnban,
	KindPage, KindFilter, KindSort, KindTheme, KindLang, KindMenu,
}

// ParseAction разбирает callback-данные в типизированное действие.
// Неизвестные данные дают false: устаревшие кнопки из старых сообщений
// молча игнорируются.
func ParseAction(data string) (Action, bool) {
	for _, kind := range knownKinds {
		if data == string(kind) {
			return Action{Kind: kind}, true
		}
		prefix := string(kind) + "_"
		if strings.HasPrefix(data, prefix) {
			arg := strings.TrimPrefix(data, prefix)
			if arg == "" {
				return Action{}, false
			}
			return Action{Kind: kind, Arg: arg}, true
		}
	}
	return Action{}, false
}
