package handler

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/assessly/assess-api/internal/dto"
	"github.com/assessly/assess-api/internal/service"
	"github.com/assessly/assess-api/internal/utils"
)

// ResultHandler exposes graded submission listings, insights, and exports.
type ResultHandler struct {
	service service.ResultService
	logger  zerolog.Logger
}

// NewResultHandler builds a result handler instance.
func NewResultHandler(service service.ResultService, logger zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		service: service,
		logger:  logger.With().Str("component", "result_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ResultHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/insights", h.insights)
	router.Get("/export", h.export)
}

func (h *ResultHandler) list(c *fiber.Ctx) error {
	filter, err := resultFilterFromQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	results, err := h.service.ListResults(c.Context(), identityFromContext(c), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "results retrieved", results)
}

func (h *ResultHandler) insights(c *fiber.Ctx) error {
	scope := dto.InsightScope{}

	courseID, err := parseQueryUint(c, "course_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course_id")
	}
	scope.CourseID = courseID

	questionID, err := parseQueryUint(c, "question_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid question_id")
	}
	scope.QuestionID = questionID

	insights, err := h.service.Insights(c.Context(), identityFromContext(c), scope)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "insights computed", insights)
}

func (h *ResultHandler) export(c *fiber.Ctx) error {
	filter, err := resultFilterFromQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var buf bytes.Buffer
	if err := h.service.ExportCSV(c.Context(), identityFromContext(c), filter, &buf); err != nil {
		return h.handleError(c, err)
	}

	fileName := fmt.Sprintf("results-%s.csv", time.Now().UTC().Format("20060102-150405"))
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", fileName))

	return c.Send(buf.Bytes())
}

func resultFilterFromQuery(c *fiber.Ctx) (dto.ResultFilter, error) {
	filter := dto.ResultFilter{}

	questionID, err := parseQueryUint(c, "question_id")
	if err != nil {
		return filter, errors.New("invalid question_id")
	}
	filter.QuestionID = questionID

	courseID, err := parseQueryUint(c, "course_id")
	if err != nil {
		return filter, errors.New("invalid course_id")
	}
	filter.CourseID = courseID

	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}

	minScore, err := parseQueryFloat(c, "min_score")
	if err != nil {
		return filter, errors.New("invalid min_score")
	}
	filter.MinScore = minScore

	maxScore, err := parseQueryFloat(c, "max_score")
	if err != nil {
		return filter, errors.New("invalid max_score")
	}
	filter.MaxScore = maxScore

	from, err := parseQueryTime(c, "from")
	if err != nil {
		return filter, errors.New("invalid from timestamp")
	}
	filter.From = from

	to, err := parseQueryTime(c, "to")
	if err != nil {
		return filter, errors.New("invalid to timestamp")
	}
	filter.To = to

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return filter, errors.New("invalid page")
	}
	filter.Page = page

	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return filter, errors.New("invalid page_size")
	}
	filter.PageSize = pageSize

	return filter, nil
}

func (h *ResultHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrCourseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "course not found")
	case errors.Is(err, service.ErrQuestionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "question not found")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
