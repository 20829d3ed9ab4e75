// Package telegram содержит адаптер мессенджера: длинный опрос обновлений,
// маршрутизацию команд и inline-кнопок к доменным сервисам и доставку
// готовых конфигураций файлами.
//
// Адаптер не держит бизнес-логику: квоты, блокировки и валидация живут
// в сервисах, здесь только разбор ввода и формирование ответов.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/warp-config-bot/internal/lib/sl"
	"github.com/magabrotheeeer/warp-config-bot/internal/models"
	"github.com/magabrotheeeer/warp-config-bot/internal/services/catalog"
	"github.com/magabrotheeeer/warp-config-bot/internal/services/issuance"
)

// UserService операции учёта пользователей, нужные адаптеру.
type UserService interface {
	Register(ctx context.Context, accountID int64, handle, displayName string) (*models.User, error)
	IsBanned(ctx context.Context, accountID int64) (bool, error)
	LinkReferral(ctx context.Context, accountID int64, code string) (*int64, error)
	ReferralStats(ctx context.Context, accountID int64) (string, int, error)
	SetBan(ctx context.Context, accountID int64, banned bool) error
	SetTheme(ctx context.Context, accountID int64, theme string) error
	SetLanguage(ctx context.Context, accountID int64, language string) error
	SupportedLanguages(ctx context.Context) ([]string, error)
	GetString(ctx context.Context, key, def string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// CatalogService операции каталога шаблонов, нужные адаптеру.
type CatalogService interface {
	Add(ctx context.Context, name string, data models.TemplateData, enabled bool) error
	Update(ctx context.Context, name string, data models.TemplateData, enabled bool) error
	Get(ctx context.Context, name string) (*models.Template, error)
	ListEnabled(ctx context.Context) ([]*models.Template, error)
}

// IssueService операции выдачи конфигураций, нужные адаптеру.
type IssueService interface {
	Issue(ctx context.Context, accountID int64, templateName, dnsChoice string) (*issuance.Result, error)
	ListUserConfigs(ctx context.Context, accountID int64) ([]*models.IssuedConfig, error)
	GetUserConfig(ctx context.Context, accountID int64, id string) (*models.IssuedConfig, error)
	DeleteUserConfig(ctx context.Context, accountID int64, id string) error
}

// AdminService административные операции, нужные адаптеру.
type AdminService interface {
	ListUsers(ctx context.Context, q models.ListUsersQuery) ([]*models.User, int, error)
	ExportUsersCSV(ctx context.Context) ([]byte, error)
	Broadcast(ctx context.Context, message string) (success, failure int, err error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// pendingTemplate ожидание выбора DNS после выбора шаблона.
type pendingTemplate struct {
	Name string
}

// pendingCatalogEdit ожидание тела шаблона после /addconfig или /editconfig.
type pendingCatalogEdit struct {
	Name   string
	Update bool
}

// Bot адаптер Telegram.
type Bot struct {
	api           *tgbotapi.BotAPI
	users         UserService
	catalog       CatalogService
	issuer        IssueService
	admin         AdminService
	log           *slog.Logger
	superAdminID  int64
	updateTimeout int

	mu             sync.Mutex
	pendingDNS     map[int64]pendingTemplate
	pendingCatalog map[int64]pendingCatalogEdit
	listQueries    map[int64]models.ListUsersQuery
}

// New создает адаптер поверх готового клиента Telegram API.
func New(api *tgbotapi.BotAPI, users UserService, catalog CatalogService, issuer IssueService,
	admin AdminService, log *slog.Logger, superAdminID int64, updateTimeout int) *Bot {
	return &Bot{
		api:            api,
		users:          users,
		catalog:        catalog,
		issuer:         issuer,
		admin:          admin,
		log:            log,
		superAdminID:   superAdminID,
		updateTimeout:  updateTimeout,
		pendingDNS:     make(map[int64]pendingTemplate),
		pendingCatalog: make(map[int64]pendingCatalogEdit),
		listQueries:    make(map[int64]models.ListUsersQuery),
	}
}

// Run запускает длинный опрос обновлений до отмены контекста.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.updateTimeout
	updates := b.api.GetUpdatesChan(u)

	b.log.Info("telegram bot started", slog.String("username", b.api.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// Send доставляет одиночное сообщение пользователю. Реализует интерфейс
// Notifier административного сервиса.
func (b *Bot) Send(accountID int64, message string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(accountID, message))
	return err
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil:
		b.handleText(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	accountID := msg.From.ID
	chatID := msg.Chat.ID

	if b.isAdmin(accountID) {
		if b.handleAdminCommand(ctx, msg) {
			return
		}
	}

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
		return
	case "help":
		b.reply(chatID, helpText(b.isAdmin(accountID)))
		return
	}

	banned, err := b.users.IsBanned(ctx, accountID)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	if banned {
		b.reply(chatID, "Вы заблокированы и не можете пользоваться ботом.")
		return
	}

	switch msg.Command() {
	case "new":
		b.sendTemplateMenu(ctx, chatID)
	case "configs":
		b.sendConfigList(ctx, chatID, accountID)
	case "settings":
		b.sendSettingsMenu(ctx, chatID)
	case "referral":
		b.sendReferralInfo(ctx, chatID, accountID)
	default:
		b.reply(chatID, "Неизвестная команда, посмотрите /help.")
	}
}

// handleAdminCommand возвращает true, если команда была административной
// и уже обработана.
func (b *Bot) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message) bool {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "stats":
		b.sendStats(ctx, chatID)
	case "listusers":
		b.mu.Lock()
		b.listQueries[chatID] = models.ListUsersQuery{Search: args}
		q := b.listQueries[chatID]
		b.mu.Unlock()
		b.sendUserList(ctx, chatID, q)
	case "export":
		b.sendUsersExport(ctx, chatID)
	case "ban", "unban":
		target, err := strconv.ParseInt(args, 10, 64)
		if err != nil {
			b.reply(chatID, fmt.Sprintf("Использование: /%s <id>", msg.Command()))
			return true
		}
		b.setBan(ctx, chatID, target, msg.Command() == "ban")
	case "notify":
		target, text, found := strings.Cut(args, " ")
		targetID, err := strconv.ParseInt(target, 10, 64)
		if !found || err != nil || strings.TrimSpace(text) == "" {
			b.reply(chatID, "Использование: /notify <id> <текст>")
			return true
		}
		if err := b.Send(targetID, strings.TrimSpace(text)); err != nil {
			b.replyError(chatID, err)
			return true
		}
		b.reply(chatID, "Отправлено.")
	case "broadcast":
		if args == "" {
			b.reply(chatID, "Использование: /broadcast <текст>")
			return true
		}
		b.startBroadcast(ctx, chatID, args)
	case "set":
		key, value, found := strings.Cut(args, " ")
		if !found || strings.TrimSpace(value) == "" {
			b.reply(chatID, "Использование: /set <ключ> <значение>")
			return true
		}
		if err := b.users.SetSetting(ctx, key, strings.TrimSpace(value)); err != nil {
			b.replyError(chatID, err)
			return true
		}
		b.reply(chatID, fmt.Sprintf("Настройка %s обновлена.", key))
	case "addconfig", "editconfig":
		if args == "" {
			b.reply(chatID, fmt.Sprintf("Использование: /%s <имя>", msg.Command()))
			return true
		}
		b.mu.Lock()
		b.pendingCatalog[chatID] = pendingCatalogEdit{Name: args, Update: msg.Command() == "editconfig"}
		b.mu.Unlock()
		b.reply(chatID, "Пришлите тело шаблона строками вида ключ=значение "+
			"(private_key, public_key, address, endpoint, dns.<провайдер>, extra.<ключ>, category, resource_url).")
	default:
		return false
	}
	return true
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	accountID := msg.From.ID
	chatID := msg.Chat.ID

	user, err := b.users.Register(ctx, accountID, msg.From.UserName, strings.TrimSpace(msg.From.FirstName+" "+msg.From.LastName))
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	// Полезная нагрузка /start — реферальный код пригласившего.
	if code := strings.TrimSpace(msg.CommandArguments()); code != "" {
		if _, err := b.users.LinkReferral(ctx, accountID, code); err != nil {
			b.log.Error("failed to link referral", slog.Int64("account_id", accountID), sl.Err(err))
		}
	}

	welcome, err := b.users.GetString(ctx, models.SettingWelcomeMessage, "Привет, {name}!")
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	name := user.DisplayName
	if name == "" {
		name = user.Handle
	}
	b.reply(chatID, strings.ReplaceAll(welcome, "{name}", name))
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !b.isAdmin(msg.From.ID) {
		return
	}

	b.mu.Lock()
	pending, ok := b.pendingCatalog[chatID]
	delete(b.pendingCatalog, chatID)
	b.mu.Unlock()
	if !ok {
		return
	}

	b.saveTemplate(ctx, chatID, pending, msg.Text)
}

func (b *Bot) saveTemplate(ctx context.Context, chatID int64, pending pendingCatalogEdit, body string) {
	data, err := catalog.ParseTemplateInput(body)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	if pending.Update {
		err = b.catalog.Update(ctx, pending.Name, data, true)
	} else {
		err = b.catalog.Add(ctx, pending.Name, data, true)
	}
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, fmt.Sprintf("Шаблон %s сохранён.", pending.Name))
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// У callback от слишком старого или недоступного сообщения поле
	// message не заполнено, отвечать такому нажатию некуда.
	if cq.Message == nil {
		b.ackCallback(cq, "")
		return
	}

	chatID := cq.Message.Chat.ID
	accountID := cq.From.ID

	action, ok := ParseAction(cq.Data)
	if !ok {
		b.ackCallback(cq, "")
		return
	}

	switch action.Kind {
	case KindTemplate:
		b.handleTemplateChosen(ctx, chatID, accountID, action.Arg)
	case KindDNS:
		b.handleDNSChosen(ctx, chatID, accountID, action.Arg)
	case KindDownload:
		b.handleDownload(ctx, chatID, accountID, action.Arg)
	case KindDelete:
		if err := b.issuer.DeleteUserConfig(ctx, accountID, action.Arg); err != nil {
			b.replyError(chatID, err)
			break
		}
		b.sendConfigList(ctx, chatID, accountID)
	case KindTheme:
		if err := b.users.SetTheme(ctx, accountID, action.Arg); err != nil {
			b.replyError(chatID, err)
			break
		}
		b.reply(chatID, "Тема обновлена.")
	case KindLang:
		if err := b.users.SetLanguage(ctx, accountID, action.Arg); err != nil {
			b.replyError(chatID, err)
			break
		}
		b.reply(chatID, "Язык обновлён.")
	case KindBan, KindUnban:
		if !b.isAdmin(accountID) {
			break
		}
		target, err := strconv.ParseInt(action.Arg, 10, 64)
		if err != nil {
			break
		}
		b.setBan(ctx, chatID, target, action.Kind == KindBan)
		b.sendUserList(ctx, chatID, b.listQuery(chatID))
	case KindPage:
		if !b.isAdmin(accountID) {
			break
		}
		page, err := strconv.Atoi(action.Arg)
		if err != nil {
			break
		}
		q := b.listQuery(chatID)
		q.Page = page
		b.setListQuery(chatID, q)
		b.sendUserList(ctx, chatID, q)
	case KindFilter:
		if !b.isAdmin(accountID) {
			break
		}
		q := b.listQuery(chatID)
		q.Filter = action.Arg
		q.Page = 0
		b.setListQuery(chatID, q)
		b.sendUserList(ctx, chatID, q)
	case KindSort:
		if !b.isAdmin(accountID) {
			break
		}
		q := b.listQuery(chatID)
		q.Sort = action.Arg
		b.setListQuery(chatID, q)
		b.sendUserList(ctx, chatID, q)
	case KindMenu:
		b.sendTemplateMenu(ctx, chatID)
	}

	b.ackCallback(cq, "")
}

func (b *Bot) handleTemplateChosen(ctx context.Context, chatID, accountID int64, name string) {
	tpl, err := b.catalog.Get(ctx, name)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	// Site-request шаблоны выдаются сразу, DNS им не нужен.
	if tpl.Data.IsSiteRequest() {
		b.issueAndDeliver(ctx, chatID, accountID, name, "")
		return
	}

	b.mu.Lock()
	b.pendingDNS[chatID] = pendingTemplate{Name: name}
	b.mu.Unlock()

	providers := make([]string, 0, len(tpl.Data.DNS))
	for provider := range tpl.Data.DNS {
		providers = append(providers, provider)
	}
	sort.Strings(providers)

	msg := tgbotapi.NewMessage(chatID, "Выберите DNS-провайдера:")
	msg.ReplyMarkup = dnsKeyboard(providers)
	b.send(msg)
}

func (b *Bot) handleDNSChosen(ctx context.Context, chatID, accountID int64, provider string) {
	b.mu.Lock()
	pending, ok := b.pendingDNS[chatID]
	delete(b.pendingDNS, chatID)
	b.mu.Unlock()
	if !ok {
		b.reply(chatID, "Сначала выберите шаблон: /new")
		return
	}

	b.issueAndDeliver(ctx, chatID, accountID, pending.Name, provider)
}

// issueAndDeliver проводит выдачу и доставляет результат. Выдача уже
// записана к моменту отправки, сбой доставки её не отменяет: конфигурация
// останется доступной в /configs.
func (b *Bot) issueAndDeliver(ctx context.Context, chatID, accountID int64, templateName, dnsChoice string) {
	result, err := b.issuer.Issue(ctx, accountID, templateName, dnsChoice)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	if result.ResourceURL != "" {
		b.reply(chatID, "Доступ выдан: "+result.ResourceURL)
		return
	}

	b.deliverConfig(chatID, result.Config)
}

func (b *Bot) deliverConfig(chatID int64, cfg *models.IssuedConfig) {
	file := tgbotapi.FileBytes{
		Name:  cfg.TemplateName + ".conf",
		Bytes: []byte(cfg.Content),
	}
	doc := tgbotapi.NewDocument(chatID, file)
	doc.Caption = fmt.Sprintf("%s / %s", cfg.TemplateName, cfg.DNSChoice)
	if _, err := b.api.Send(doc); err != nil {
		b.log.Error("failed to deliver config",
			slog.Int64("chat_id", chatID), slog.String("config_id", cfg.ID), sl.Err(err))
		b.reply(chatID, "Не удалось отправить файл, конфигурация сохранена в /configs.")
	}
}

func (b *Bot) handleDownload(ctx context.Context, chatID, accountID int64, id string) {
	cfg, err := b.issuer.GetUserConfig(ctx, accountID, id)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.deliverConfig(chatID, cfg)
}

func (b *Bot) sendTemplateMenu(ctx context.Context, chatID int64) {
	templates, err := b.catalog.ListEnabled(ctx)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	if len(templates) == 0 {
		b.reply(chatID, "Каталог пуст, загляните позже.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, "Выберите конфигурацию:")
	msg.ReplyMarkup = templatesKeyboard(templates)
	b.send(msg)
}

func (b *Bot) sendConfigList(ctx context.Context, chatID, accountID int64) {
	configs, err := b.issuer.ListUserConfigs(ctx, accountID)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	if len(configs) == 0 {
		b.reply(chatID, "У вас пока нет конфигураций, создайте первую: /new")
		return
	}

	msg := tgbotapi.NewMessage(chatID, "Ваши конфигурации:")
	msg.ReplyMarkup = configsKeyboard(configs)
	b.send(msg)
}

func (b *Bot) sendSettingsMenu(ctx context.Context, chatID int64) {
	languages, err := b.users.SupportedLanguages(ctx)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	msg := tgbotapi.NewMessage(chatID, "Настройки:")
	msg.ReplyMarkup = settingsKeyboard()
	b.send(msg)

	langMsg := tgbotapi.NewMessage(chatID, "Язык интерфейса:")
	langMsg.ReplyMarkup = languagesKeyboard(languages)
	b.send(langMsg)
}

func (b *Bot) sendReferralInfo(ctx context.Context, chatID, accountID int64) {
	code, count, err := b.users.ReferralStats(ctx, accountID)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	link := fmt.Sprintf("https://t.me/%s?start=%s", b.api.Self.UserName, code)
	b.reply(chatID, fmt.Sprintf(
		"Ваша реферальная ссылка:\n%s\n\nПриглашено: %d. Каждый приглашённый добавляет +1 конфигурацию в день.",
		link, count))
}

func (b *Bot) sendStats(ctx context.Context, chatID int64) {
	stats, err := b.admin.Stats(ctx)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, fmt.Sprintf(
		"Пользователей: %d (забанено %d)\nКонфигураций всего: %d, за сутки: %d\nВыдач доступа за сутки: %d",
		stats.TotalUsers, stats.BannedUsers, stats.ConfigsTotal, stats.ConfigsToday, stats.SiteRequestsToday))
}

func (b *Bot) sendUserList(ctx context.Context, chatID int64, q models.ListUsersQuery) {
	users, total, err := b.admin.ListUsers(ctx, q)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	if total == 0 {
		b.reply(chatID, "Никого не найдено.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Пользователи (%d), страница %d:", total, q.Page+1))
	msg.ReplyMarkup = userListKeyboard(users, q.Page, total)
	b.send(msg)
}

func (b *Bot) sendUsersExport(ctx context.Context, chatID int64) {
	data, err := b.admin.ExportUsersCSV(ctx)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	file := tgbotapi.FileBytes{
		Name:  fmt.Sprintf("users-%s.csv", time.Now().UTC().Format("2006-01-02")),
		Bytes: data,
	}
	if _, err := b.api.Send(tgbotapi.NewDocument(chatID, file)); err != nil {
		b.replyError(chatID, err)
	}
}

// startBroadcast выполняет рассылку в отдельной горутине: она растянута
// лимитером и не должна блокировать опрос обновлений.
func (b *Bot) startBroadcast(ctx context.Context, chatID int64, message string) {
	b.reply(chatID, "Рассылка начата.")
	go func() {
		success, failure, err := b.admin.Broadcast(ctx, message)
		if err != nil {
			b.log.Error("broadcast failed", sl.Err(err))
			b.reply(chatID, "Рассылка не удалась: "+err.Error())
			return
		}
		b.reply(chatID, fmt.Sprintf("Рассылка завершена: доставлено %d, не доставлено %d.", success, failure))
	}()
}

func (b *Bot) setBan(ctx context.Context, chatID, target int64, banned bool) {
	if err := b.users.SetBan(ctx, target, banned); err != nil {
		b.replyError(chatID, err)
		return
	}
	if banned {
		b.reply(chatID, fmt.Sprintf("Пользователь %d заблокирован.", target))
	} else {
		b.reply(chatID, fmt.Sprintf("Пользователь %d разблокирован.", target))
	}
}

func (b *Bot) isAdmin(accountID int64) bool {
	return accountID == b.superAdminID
}

func (b *Bot) listQuery(chatID int64) models.ListUsersQuery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listQueries[chatID]
}

func (b *Bot) setListQuery(chatID int64, q models.ListUsersQuery) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listQueries[chatID] = q
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Error("failed to send message", sl.Err(err))
	}
}

func (b *Bot) ackCallback(cq *tgbotapi.CallbackQuery, text string) {
	cb := tgbotapi.NewCallback(cq.ID, text)
	if _, err := b.api.Request(cb); err != nil {
		b.log.Warn("failed to ack callback", sl.Err(err))
	}
}

// replyError переводит доменные ошибки в сообщения пользователю.
func (b *Bot) replyError(chatID int64, err error) {
	var quotaErr *models.QuotaExceededError
	var validationErr *models.ValidationError
	var renderErr *models.RenderError

	switch {
	case errors.As(err, &quotaErr):
		b.reply(chatID, fmt.Sprintf(
			"Дневной лимит (%d) исчерпан. Новая выдача будет доступна %s.",
			quotaErr.Limit, quotaErr.ResetAt.Local().Format("02.01 в 15:04")))
	case errors.Is(err, models.ErrBanned):
		b.reply(chatID, "Вы заблокированы и не можете пользоваться ботом.")
	case errors.Is(err, models.ErrNotFound):
		b.reply(chatID, "Запись не найдена.")
	case errors.As(err, &validationErr):
		b.reply(chatID, "Ошибка: "+validationErr.Msg)
	case errors.As(err, &renderErr):
		b.reply(chatID, fmt.Sprintf("DNS-провайдер %s недоступен для этого шаблона.", renderErr.DNSChoice))
	default:
		b.log.Error("internal error", sl.Err(err))
		b.reply(chatID, "Что-то пошло не так, попробуйте позже.")
	}
}

func helpText(isAdmin bool) string {
	text := `Команды:
/new — создать конфигурацию
/configs — мои конфигурации
/settings — тема и язык
/referral — реферальная ссылка
/help — эта справка`
	if isAdmin {
		text += `

Администратору:
/stats — сводка за сутки
/listusers [поиск] — список пользователей
/export — выгрузка CSV
/ban <id>, /unban <id> — блокировка
/notify <id> <текст> — сообщение пользователю
/broadcast <текст> — рассылка
/addconfig <имя>, /editconfig <имя> — шаблоны
/set <ключ> <значение> — настройки`
	}
	return text
}
