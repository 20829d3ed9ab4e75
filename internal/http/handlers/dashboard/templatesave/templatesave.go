// Package templatesave реализует HTTP-обработчик сохранения шаблона
// конфигурации из панели администратора: POST создаёт шаблон,
// PUT перезаписывает существующий.
package templatesave

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/warp-config-bot/internal/http/response"
	"github.com/magabrotheeeer/warp-config-bot/internal/lib/sl"
	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

// Service операции каталога шаблонов, нужные обработчику.
type Service interface {
	Add(ctx context.Context, name string, data models.TemplateData, enabled bool) error
	Update(ctx context.Context, name string, data models.TemplateData, enabled bool) error
}

// Handler обрабатывает запросы сохранения шаблона.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Сохранение шаблона конфигурации
// @Description Создаёт шаблон (POST) или перезаписывает существующий (PUT). Содержимое проверяется каталогом: обязательные поля, DNS-карта, для site-request — ссылка на ресурс.
// @Tags Dashboard
// @Security BearerAuth
// @Accept  json
// @Produce  json
// @Param request body models.DummyTemplate true "Шаблон конфигурации"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Шаблон не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /templates [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard.templatesave"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyTemplate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	var err error
	if r.Method == http.MethodPut {
		err = h.service.Update(r.Context(), req.Name, req.Data, req.Enabled)
	} else {
		err = h.service.Add(r.Context(), req.Name, req.Data, req.Enabled)
	}

	var validationErr *models.ValidationError
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("template not found"))
		return
	case errors.As(err, &validationErr):
		log.Warn("template rejected", slog.String("name", req.Name), sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(validationErr.Msg))
		return
	default:
		log.Error("failed to save template", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("template saved", slog.String("name", req.Name))
	render.JSON(w, r, response.OKWithData(map[string]any{"name": req.Name}))
}
