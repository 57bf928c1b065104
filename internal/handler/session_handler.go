package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/examdrill/internal/i18n"
	"github.com/stemsi/examdrill/internal/model"
	"github.com/stemsi/examdrill/internal/questionbank"
	"github.com/stemsi/examdrill/internal/response"
	"github.com/stemsi/examdrill/internal/service"
	"github.com/stemsi/examdrill/internal/validator"
)

type SessionHandler struct {
	sessionService *service.SessionService
	bank           *questionbank.Holder
	log            zerolog.Logger
}

func NewSessionHandler(sessionService *service.SessionService, bank *questionbank.Holder, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		bank:           bank,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// Session godoc
// POST /api/session
// Loads, saves or clears a session. Successful calls answer with the bare
// session snapshot: 201 when a save allocated a new session, 200 otherwise.
func (h *SessionHandler) Session(c *gin.Context) {
	var req model.SessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctx := c.Request.Context()
	var (
		snap    *model.ExamSession
		created bool
		err     error
	)

	switch req.Action {
	case model.SessionActionLoad:
		snap, err = h.sessionService.Load(ctx, req.SessionID, req.TurnstileToken, c.ClientIP())
	case model.SessionActionSave:
		var payload model.SavePayload
		if req.Payload != nil {
			payload = *req.Payload
		}
		snap, created, err = h.sessionService.Save(ctx, req.SessionID, payload)
	case model.SessionActionClear:
		snap, err = h.sessionService.Clear(ctx, req.SessionID)
	}

	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, snap)
}

// Welcome godoc
// GET /api/welcome
// Returns the visitor's city, country and edge location. Never fails.
func (h *SessionHandler) Welcome(c *gin.Context) {
	unknown := i18n.T(c.Request.Context(), "UnknownPlace")
	c.JSON(http.StatusOK, service.WelcomeInfo(c.Request.Header, unknown))
}

// Export godoc
// GET /api/session/:id/export
// Downloads the wrong-answer book in the question-bank format, with an empty
// placeholder line where the answer would be.
func (h *SessionHandler) Export(c *gin.Context) {
	snap, err := h.sessionService.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	bank := h.bank.Get()
	if bank == nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrBankUnavailable)
		return
	}

	body := questionbank.Export(bank.Filter(snap.WrongQuestionIDs))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="wrong_answers_%s.txt"`, snap.ID))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(body))
}

// fail maps service errors onto the API error taxonomy.
func (h *SessionHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionIDRequired):
		response.Fail(c, http.StatusBadRequest, response.ErrSessionIDRequired)
	case errors.Is(err, service.ErrInvalidResult):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
	case errors.Is(err, service.ErrVerificationFailed):
		response.Fail(c, http.StatusForbidden, response.ErrVerificationFailed)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Session request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
