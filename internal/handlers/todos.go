package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/ytakahashi/todo-api/internal/services"
)

const (
	rootMessage    = "Todo API is running. Use /todos to interact with the API."
	maxBodySize    = 1 << 20
	healthzTimeout = 2 * time.Second
)

var errInvalidBody = errors.New("invalid body")

type messageResponse struct {
	Message string `json:"message"`
}

type TodoHandler struct {
	store  services.TodoStore
	strict bool
	log    *log.Logger
}

// NewTodoHandler builds the todo routes. With strict unset, a missing or
// malformed id answers 200 with a JSON null; with strict set it answers
// 404 or 400.
func NewTodoHandler(store services.TodoStore, strict bool, logger *log.Logger) *TodoHandler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &TodoHandler{
		store:  store,
		strict: strict,
		log:    logger,
	}
}

// Register wires up all routes on the provided Echo instance.
func (h *TodoHandler) Register(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/healthz", h.Healthz)

	todos := e.Group("/todos")
	todos.GET("", h.List)
	todos.POST("", h.Create)
	todos.GET("/:id", h.Get)
	todos.PUT("/:id", h.Update)
	todos.DELETE("/:id", h.Delete)
}

func (h *TodoHandler) Root(c echo.Context) error {
	return c.String(http.StatusOK, rootMessage)
}

func (h *TodoHandler) Healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthzTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.WithError(err).Warn("health check failed")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *TodoHandler) List(c echo.Context) error {
	todos, err := h.store.List(c.Request().Context())
	if err != nil {
		return h.storageFailure(c, "list", "", err)
	}
	return c.JSON(http.StatusOK, todos)
}

func (h *TodoHandler) Create(c echo.Context) error {
	fields, err := decodeFields(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
	}

	todo, err := h.store.Create(c.Request().Context(), fields)
	if err != nil {
		return h.storageFailure(c, "create", "", err)
	}
	return c.JSON(http.StatusOK, todo)
}

func (h *TodoHandler) Get(c echo.Context) error {
	id := c.Param("id")
	todo, err := h.store.Get(c.Request().Context(), id)
	if err != nil {
		return h.lookupFailure(c, "get", id, err)
	}
	return c.JSON(http.StatusOK, todo)
}

func (h *TodoHandler) Update(c echo.Context) error {
	id := c.Param("id")
	fields, err := decodeFields(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
	}

	todo, err := h.store.Update(c.Request().Context(), id, fields)
	if err != nil {
		return h.lookupFailure(c, "update", id, err)
	}
	return c.JSON(http.StatusOK, todo)
}

func (h *TodoHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	err := h.store.Delete(c.Request().Context(), id)
	switch {
	case err == nil, errors.Is(err, services.ErrNotFound):
	case errors.Is(err, services.ErrMalformedID):
		if h.strict {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "malformed id"})
		}
	default:
		return h.storageFailure(c, "delete", id, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Deleted"})
}

// lookupFailure maps errors from id-addressed reads and writes.
func (h *TodoHandler) lookupFailure(c echo.Context, op, id string, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		if h.strict {
			return c.JSON(http.StatusNotFound, messageResponse{Message: "not found"})
		}
	case errors.Is(err, services.ErrMalformedID):
		if h.strict {
			return c.JSON(http.StatusBadRequest, messageResponse{Message: "malformed id"})
		}
	default:
		return h.storageFailure(c, op, id, err)
	}
	return c.JSON(http.StatusOK, nil)
}

func (h *TodoHandler) storageFailure(c echo.Context, op, id string, err error) error {
	h.log.WithFields(log.Fields{
		"op": op,
		"id": id,
	}).WithError(err).Error("storage failure")
	return c.JSON(http.StatusInternalServerError, messageResponse{Message: "storage failure"})
}

// decodeFields reads a JSON object body. Anything else, including null,
// arrays and oversize bodies, is rejected, as are keys a backend would read
// as a path or an operator.
func decodeFields(c echo.Context) (map[string]any, error) {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize+1))
	if err != nil || len(data) > maxBodySize {
		return nil, errInvalidBody
	}

	var fields map[string]any
	if err := sonic.ConfigStd.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, errInvalidBody
	}
	for k := range fields {
		if !validFieldName(k) {
			return nil, errInvalidBody
		}
	}
	return fields, nil
}

// validFieldName reports whether k can be stored as a literal top-level key
// by every backend. Mongo treats dotted $set keys as paths and $-prefixed
// keys as operators; Firestore rejects empty path segments.
func validFieldName(k string) bool {
	return k != "" && !strings.HasPrefix(k, "$") && !strings.Contains(k, ".")
}
