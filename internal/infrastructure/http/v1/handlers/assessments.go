package handlers

import (
	"github.com/gin-gonic/gin"

	"lms/internal/domain/assessments"
	"lms/internal/infrastructure/http/v1/dto"
)

// QuizHandler serves quiz authoring on top of CRUD. Students go through
// AttemptHandler and never see the answer key.
type QuizHandler struct {
	*EntityHandler[*assessments.Quiz, dto.CreateQuizRequest, dto.UpdateQuizRequest]
	service *assessments.QuizService
}

// NewQuizHandler creates a new quiz handler.
func NewQuizHandler(base *BaseHandler, service *assessments.QuizService) *QuizHandler {
	return &QuizHandler{
		EntityHandler: NewEntityHandler(base, EntityHandlerConfig[*assessments.Quiz, dto.CreateQuizRequest, dto.UpdateQuizRequest]{
			Service:   service,
			MapCreate: dto.CreateQuizRequest.ToEntity,
			MapUpdate: func(req dto.UpdateQuizRequest, q *assessments.Quiz) {
				req.ApplyTo(q)
			},
		}),
		service: service,
	}
}

// Publish handles POST /quizzes/:id/publish
func (h *QuizHandler) Publish(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	q, err := h.service.Publish(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, q)
}

// ListByCourse handles GET /courses/:id/quizzes
func (h *QuizHandler) ListByCourse(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	f, ok := h.ListFilter(c, "created_at")
	if !ok {
		return
	}
	res, err := h.service.ListByCourse(c.Request.Context(), key, f)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, res)
}

// AttemptHandler serves quiz taking for enrolled students.
type AttemptHandler struct {
	*BaseHandler
	service *assessments.AttemptService
}

// NewAttemptHandler creates a new attempt handler.
func NewAttemptHandler(base *BaseHandler, service *assessments.AttemptService) *AttemptHandler {
	return &AttemptHandler{BaseHandler: base, service: service}
}

// Paper handles GET /quizzes/:id/paper
func (h *AttemptHandler) Paper(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	q, err := h.service.Paper(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, q)
}

// Start handles POST /quizzes/:id/attempts
func (h *AttemptHandler) Start(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	a, err := h.service.Start(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, a)
}

// Mine handles GET /quizzes/:id/attempts
func (h *AttemptHandler) Mine(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	f, ok := h.ListFilter(c, "-started_at")
	if !ok {
		return
	}
	res, err := h.service.Mine(c.Request.Context(), key, f)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(h.BaseHandler, c, res)
}

// Submit handles POST /attempts/:id/submit
func (h *AttemptHandler) Submit(c *gin.Context) {
	key, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.SubmitAttemptRequest
	if !h.BindJSON(c, &req) {
		return
	}
	a, err := h.service.Submit(c.Request.Context(), key, req.Answers)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, a)
}
