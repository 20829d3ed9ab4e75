// Package exportcsv реализует HTTP-обработчик выгрузки пользователей в CSV.
package exportcsv

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/warp-config-bot/internal/http/response"
	"github.com/magabrotheeeer/warp-config-bot/internal/lib/sl"
)

// Service описывает интерфейс административного сервиса.
type Service interface {
	ExportUsersCSV(ctx context.Context) ([]byte, error)
}

// Handler обрабатывает запросы выгрузки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Выгрузка пользователей в CSV
// @Description Возвращает всех пользователей файлом CSV.
// @Tags Dashboard
// @Produce  plain
// @Success 200 {string} string "CSV с пользователями"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Security BearerAuth
// @Router /users/export [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard.exportcsv"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	data, err := h.service.ExportUsersCSV(r.Context())
	if err != nil {
		log.Error("failed to export users", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to export users"))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="users.csv"`)
	if _, err := w.Write(data); err != nil {
		log.Error("failed to write csv", sl.Err(err))
	}
}
