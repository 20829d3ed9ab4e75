// Package login реализует HTTP-обработчик входа в панель администратора.
//
// В нём определяется структура Request для входных данных, выполняется
// декодирование JSON, валидация полей, сверка пароля с bcrypt-хэшем
// из хранилища и выпуск JWT при успехе.
package login

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
	jwtlib "github.com/magabrotheeeer/warp-config-bot/internal/lib/jwt"
	"github.com/magabrotheeeer/warp-config-bot/internal/lib/password"
	"github.com/magabrotheeeer/warp-config-bot/internal/lib/sl"
	"github.com/magabrotheeeer/warp-config-bot/internal/models"
)

// Request — структура входных данных для авторизации.
type Request struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

// AdminStore отдаёт bcrypt-хэш пароля администратора панели.
type AdminStore interface {
	GetDashboardAdmin(ctx context.Context, username string) (string, error)
}

// Handler обрабатывает HTTP-запросы авторизации в панель.
type Handler struct {
	log      *slog.Logger
	store    AdminStore
	maker    jwtlib.Maker
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, store AdminStore, maker jwtlib.Maker) *Handler {
	return &Handler{
		log:      log,
		store:    store,
		maker:    maker,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Авторизация администратора панели
// @Description Сверяет пароль с хэшем и возвращает JWT для остальных запросов панели.
// @Tags Dashboard
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные администратора"
// @Success 200 {object} map[string]any "Успешная авторизация"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Router /login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard.login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
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

	hash, err := h.store.GetDashboardAdmin(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.Error("failed to read admin record", sl.Err(err))
		}
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid credentials"))
		return
	}
	if err := password.CompareHash(hash, req.Password); err != nil {
		log.Warn("password mismatch", slog.String("username", req.Username))
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid credentials"))
		return
	}

	token, err := h.maker.GenerateToken(req.Username)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("login success", slog.String("username", req.Username))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token":    token,
		"username": req.Username,
	}))
}
