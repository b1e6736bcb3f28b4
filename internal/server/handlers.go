package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/agent"
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// -- Chat --

type chatRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
}

// handleChat runs one assistant turn synchronously. Clients that want the
// live stream watch /api/v1/events while this request is in flight.
func (s *Server) handleChat(c echo.Context) error {
	if s.deps.Assistant == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("assistant not configured"))
	}
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("text is required"))
	}

	sessionID, response, err := s.deps.Assistant.HandleUtterance(c.Request().Context(), req.SessionID, req.Text)
	if err != nil {
		s.log.Warn("Chat turn failed.", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
	}
	return c.JSON(http.StatusOK, chatResponse{SessionID: sessionID, Response: response})
}

func (s *Server) handleChatStop(c echo.Context) error {
	if s.deps.Assistant == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("assistant not configured"))
	}
	s.deps.Assistant.Stop()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleChatNew(c echo.Context) error {
	if s.deps.Assistant == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("assistant not configured"))
	}
	s.deps.Assistant.NewConversation()
	return c.NoContent(http.StatusNoContent)
}

// -- Conversation History --

func (s *Server) handleSessions(c echo.Context) error {
	if s.deps.History == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("history not configured"))
	}
	sessions, err := s.deps.History.GetSessions(c.Request().Context())
	if err != nil {
		s.log.Warn("Could not list sessions.", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("failed to list sessions"))
	}
	return c.JSON(http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleSessionMessages(c echo.Context) error {
	if s.deps.History == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("history not configured"))
	}
	messages, err := s.deps.History.GetMessages(c.Request().Context(), c.Param("id"))
	if err != nil {
		s.log.Warn("Could not load messages.", zap.String("session", c.Param("id")), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("failed to load messages"))
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleSessionDelete(c echo.Context) error {
	if s.deps.History == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("history not configured"))
	}
	if err := s.deps.History.DeleteSession(c.Request().Context(), c.Param("id")); err != nil {
		s.log.Warn("Could not delete session.", zap.String("session", c.Param("id")), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("failed to delete session"))
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Briefing and Search --

func (s *Server) handleBriefing(c echo.Context) error {
	if s.deps.Briefing == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("briefing not configured"))
	}
	curate := true
	if raw := c.QueryParam("curate"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("curate must be a boolean"))
		}
		curate = parsed
	}

	stories, err := s.deps.Briefing.Briefing(c.Request().Context(), curate)
	if err != nil {
		s.log.Warn("Briefing failed.", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("briefing unavailable"))
	}
	return c.JSON(http.StatusOK, map[string]any{"stories": stories})
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

func (s *Server) handleSearch(c echo.Context) error {
	if s.deps.Search == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("search not configured"))
	}
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if strings.TrimSpace(req.Query) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("query is required"))
	}

	results, err := s.deps.Search.Search(c.Request().Context(), req.Query, req.MaxResults)
	if err != nil {
		s.log.Warn("Search failed.", zap.String("query", req.Query), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("search failed"))
	}
	return c.JSON(http.StatusOK, map[string]any{"results": results})
}

// -- Devices --

func (s *Server) handleDevices(c echo.Context) error {
	if s.deps.Devices == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("device control not configured"))
	}
	devices, err := s.deps.Devices.Discover(c.Request().Context())
	if err != nil {
		s.log.Warn("Device discovery failed.", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody("discovery failed"))
	}
	return c.JSON(http.StatusOK, map[string]any{"devices": devices})
}

type deviceCommandRequest struct {
	Action     string       `json:"action"`
	Brightness int          `json:"brightness"`
	Color      *schemas.HSV `json:"color"`
}

func (s *Server) handleDeviceCommand(c echo.Context) error {
	if s.deps.Devices == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("device control not configured"))
	}
	var req deviceCommandRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	alias := c.Param("alias")
	ctx := c.Request().Context()
	var err error
	switch req.Action {
	case "on":
		err = s.deps.Devices.TurnOn(ctx, alias)
	case "off":
		err = s.deps.Devices.TurnOff(ctx, alias)
	case "brightness":
		err = s.deps.Devices.SetBrightness(ctx, alias, req.Brightness)
	case "color":
		if req.Color == nil {
			return c.JSON(http.StatusBadRequest, errorBody("color is required"))
		}
		err = s.deps.Devices.SetColor(ctx, alias, *req.Color)
	default:
		return c.JSON(http.StatusBadRequest, errorBody("unknown action "+strconv.Quote(req.Action)))
	}
	if err != nil {
		s.log.Warn("Device command failed.",
			zap.String("alias", alias), zap.String("action", req.Action), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Agent Tasks --

type agentTaskRequest struct {
	Instruction string `json:"instruction"`
}

// handleAgentStart launches a browser task in the background; progress
// streams over the event feed. One task at a time.
func (s *Server) handleAgentStart(c echo.Context) error {
	if s.deps.Agent == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("agent not configured"))
	}
	var req agentTaskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		return c.JSON(http.StatusBadRequest, errorBody("instruction is required"))
	}

	if !s.taskGate.CompareAndSwap(false, true) {
		return c.JSON(http.StatusConflict, errorBody("a task is already running"))
	}
	go func() {
		defer s.taskGate.Store(false)
		if _, err := s.deps.Agent.RunTask(s.lifetime(), instruction); err != nil {
			s.log.Warn("Agent task ended with error.", zap.Error(err))
		}
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"state": string(agent.StateRunning)})
}

func (s *Server) handleAgentStop(c echo.Context) error {
	if s.deps.Agent == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("agent not configured"))
	}
	s.deps.Agent.Stop()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleAgentStatus(c echo.Context) error {
	if s.deps.Agent == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("agent not configured"))
	}
	return c.JSON(http.StatusOK, map[string]string{
		"state":            string(s.deps.Agent.State()),
		"terminate_status": string(s.deps.Agent.TerminateStatus()),
	})
}
