// Package userlist реализует HTTP-обработчик постраничного списка
// пользователей бота для панели администратора.
package userlist

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/warp-config-bot/internal/http/response"
	"github.com/magabrotheeeer/warp-config-bot/internal/lib/sl"
	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

// Service описывает интерфейс административного сервиса.
type Service interface {
	ListUsers(ctx context.Context, q models.ListUsersQuery) ([]*models.User, int, error)
}

// Handler обрабатывает запросы списка пользователей.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Список пользователей
// @Description Возвращает страницу пользователей с фильтром, сортировкой и поиском.
// @Tags Dashboard
// @Produce  json
// @Param page query int false "Номер страницы, с нуля"
// @Param filter query string false "all, active или banned"
// @Param sort query string false "created_desc, created_asc или id_asc"
// @Param search query string false "Поисковая подстрока"
// @Success 200 {object} response.Response "Страница пользователей"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Security BearerAuth
// @Router /users [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard.userlist"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	q := models.ListUsersQuery{
		Page:   page,
		Filter: r.URL.Query().Get("filter"),
		Sort:   r.URL.Query().Get("sort"),
		Search: r.URL.Query().Get("search"),
	}

	users, total, err := h.service.ListUsers(r.Context(), q)
	if err != nil {
		log.Error("failed to list users", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list users"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"users": users,
		"total": total,
		"page":  q.Page,
	}))
}
