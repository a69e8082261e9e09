package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/service"
)

type ReadingHandler struct {
	svc *service.ReadingService
}

func NewReadingHandler(svc *service.ReadingService) *ReadingHandler {
	registerJSONFieldNames()
	return &ReadingHandler{svc: svc}
}

func (h *ReadingHandler) Register(rg *gin.RouterGroup) {
	readings := rg.Group("/reading")
	readings.GET("", h.List)
	readings.POST("", h.Create)
	readings.GET("/:id", h.Get)
	readings.PUT("/:id", h.Update)
	readings.DELETE("/:id", h.Delete)
}

func (h *ReadingHandler) List(c *gin.Context) {
	readings, err := h.svc.ListReadings(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	out := make([]ReadingResponse, 0, len(readings))
	for _, r := range readings {
		out = append(out, toResponse(r))
	}
	respondOK(c, out)
}

func (h *ReadingHandler) Create(c *gin.Context) {
	var req CreateReadingRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd, err := req.toCommand()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	r, err := h.svc.CreateReading(c.Request.Context(), cmd)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, toResponse(r))
}

func (h *ReadingHandler) Get(c *gin.Context) {
	ref, ok := parseRef(c, "id")
	if !ok {
		return
	}

	r, err := h.svc.GetReading(c.Request.Context(), ref)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toResponse(r))
}

func (h *ReadingHandler) Update(c *gin.Context) {
	ref, ok := parseRef(c, "id")
	if !ok {
		return
	}

	var req UpdateReadingRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd, err := req.toCommand()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if _, err := h.svc.UpdateReading(c.Request.Context(), ref, cmd); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ReadingHandler) Delete(c *gin.Context) {
	ref, ok := parseRef(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteReading(c.Request.Context(), ref); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
