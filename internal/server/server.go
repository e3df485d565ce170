package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/lenden-assist/server/internal/assistant"
	"github.com/lenden-assist/server/internal/assistant/model"
	errx "github.com/lenden-assist/server/internal/core/error"
)

// Service exposes the assistant core over HTTP. Auth middleware sits in
// front of this service and is out of scope here.
type Service struct {
	assistant *assistant.Assistant
}

func New(a *assistant.Assistant) *Service {
	return &Service{assistant: a}
}

type chatRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
	Text      string `json:"text"`
}

type resolveRequest struct {
	Resolution string `json:"resolution"`
}

type uploadRequest struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Content  string `json:"content"`
}

// Register wires all routes onto the echo instance.
func (s *Service) Register(e *echo.Echo) {
	user := e.Group("/api/v1")
	user.POST("/chat", s.handleChat)
	user.GET("/sessions", s.listSessions)
	user.GET("/sessions/:id/messages", s.getHistory)

	admin := e.Group("/api/v1/admin")
	admin.GET("/escalations", s.listEscalations)
	admin.POST("/escalations/:id/resolve", s.resolveEscalation)
	admin.POST("/knowledge", s.uploadKnowledge)
	admin.GET("/knowledge", s.listKnowledge)
}

func (s *Service) handleChat(c *echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId required")
	}

	result, err := s.assistant.HandleUserQuery(c.Request().Context(), req.UserID, req.SessionID, req.Text)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Service) listSessions(c *echo.Context) error {
	userID := c.QueryParam("userId")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId required")
	}

	sessions, err := s.assistant.Sessions(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Service) getHistory(c *echo.Context) error {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	msgs, err := s.assistant.History(c.Request().Context(), c.Param("id"), limit, offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, msgs)
}

func (s *Service) listEscalations(c *echo.Context) error {
	status := model.EscalationStatus(c.QueryParam("status"))
	if status != "" && status != model.EscalationOpen && status != model.EscalationResolved {
		return echo.NewHTTPError(http.StatusBadRequest, "status must be open or resolved")
	}

	records, err := s.assistant.ListEscalations(c.Request().Context(), status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Service) resolveEscalation(c *echo.Context) error {
	var req resolveRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Resolution) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "resolution required")
	}

	rec, err := s.assistant.ResolveEscalation(c.Request().Context(), c.Param("id"), req.Resolution)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Service) uploadKnowledge(c *echo.Context) error {
	var req uploadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	item, err := s.assistant.UploadKnowledge(c.Request().Context(), model.KnowledgeItem{
		ID:       req.ID,
		Title:    req.Title,
		Type:     req.Type,
		Category: model.Category(req.Category),
		Content:  req.Content,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (s *Service) listKnowledge(c *echo.Context) error {
	items, err := s.assistant.ListKnowledge(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// httpError maps core errors onto HTTP errors, keeping the safe message and
// hiding the underlying cause.
func httpError(err error) error {
	var appErr *errx.AppError
	if errors.As(err, &appErr) {
		return echo.NewHTTPError(appErr.Status, appErr.Message)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, errx.SystemErrorMessage)
}

func queryInt(c *echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
