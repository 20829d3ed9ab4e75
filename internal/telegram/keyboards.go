package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

func templatesKeyboard(templates []*models.Template) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, tpl := range templates {
		label := tpl.Name
		if tpl.Data.IsSiteRequest() {
			label = "🌐 " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, Action{Kind: KindTemplate, Arg: tpl.Name}.Data()),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func dnsKeyboard(providers []string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, provider := range providers {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(provider, Action{Kind: KindDNS, Arg: provider}.Data()),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func configsKeyboard(configs []*models.IssuedConfig) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, cfg := range configs {
		label := fmt.Sprintf("%d. %s / %s", i+1, cfg.TemplateName, cfg.CreatedAt.Format("02.01 15:04"))
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("⬇️ "+label, Action{Kind: KindDownload, Arg: cfg.ID}.Data()),
				tgbotapi.NewInlineKeyboardButtonData("🗑", Action{Kind: KindDelete, Arg: cfg.ID}.Data()),
			))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func settingsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("☀️ Светлая тема", Action{Kind: KindTheme, Arg: models.ThemeLight}.Data()),
			tgbotapi.NewInlineKeyboardButtonData("🌙 Тёмная тема", Action{Kind: KindTheme, Arg: models.ThemeDark}.Data()),
		),
	)
}

func languagesKeyboard(languages []string) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, lang := range languages {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(lang, Action{Kind: KindLang, Arg: lang}.Data()))
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(row...))
}

func userListKeyboard(users []*models.User, page, total int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, u := range users {
		action := Action{Kind: KindBan, Arg: strconv.FormatInt(u.AccountID, 10)}
		label := "🔒 Забанить"
		if u.Banned {
			action.Kind = KindUnban
			label = "🔓 Разбанить"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%d @%s — %s", u.AccountID, u.Handle, u.Status()),
				Action{Kind: KindPage, Arg: strconv.Itoa(page)}.Data()),
			tgbotapi.NewInlineKeyboardButtonData(label, action.Data()),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️",
			Action{Kind: KindPage, Arg: strconv.Itoa(page - 1)}.Data()))
	}
	if (page+1)*models.UsersPageSize < total {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("➡️",
			Action{Kind: KindPage, Arg: strconv.Itoa(page + 1)}.Data()))
	}
	if len(nav) > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(nav...))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Все", Action{Kind: KindFilter, Arg: models.FilterAll}.Data()),
		tgbotapi.NewInlineKeyboardButtonData("Активные", Action{Kind: KindFilter, Arg: models.FilterActive}.Data()),
		tgbotapi.NewInlineKeyboardButtonData("Забаненные", Action{Kind: KindFilter, Arg: models.FilterBanned}.Data()),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
