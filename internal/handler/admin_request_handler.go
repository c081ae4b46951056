package handler

import (
	"net/http"

	"expensecontrol/internal/middleware"
	"expensecontrol/internal/model"
	"expensecontrol/internal/service"
	"expensecontrol/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminRequestHandler serves the reviewer side of the request lifecycle.
type AdminRequestHandler struct {
	requestService service.RequestService
}

func NewAdminRequestHandler(requestService service.RequestService) *AdminRequestHandler {
	return &AdminRequestHandler{requestService: requestService}
}

func (h *AdminRequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	admin := router.Group("/admin/requests", middleware.RequireRole(model.RoleAdmin))
	{
		admin.GET("", h.ListRequests)
		admin.GET("/statistics", h.GetStatistics)
		admin.GET("/:id", h.GetRequest)
		admin.PATCH("/:id/info-request", h.RequestInfo)
		admin.PATCH("/:id/decision", h.Decide)
		admin.DELETE("/:id", h.DeleteRequest)
	}
}

// ListRequests lists every branch's requests, optionally filtered by status
// @Summary      List all requests
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "PENDING, PENDING_INFO, APPROVED or REJECTED"
// @Param        page    query     int     false  "Page (0-based)"
// @Param        size    query     int     false  "Page size (max 50)"
// @Param        sort    query     string  false  "RECENT, OLD, VALUE_DESC, VALUE_ASC or TITLE"
// @Param        q       query     string  false  "Free-text search, also matches branch"
// @Param        all     query     bool    false  "Return every request unpaged"
// @Success      200     {object}  response.Response{data=pagination.Page[service.RequestResponse]}
// @Failure      400     {object}  response.Response
// @Router       /api/admin/requests [get]
func (h *AdminRequestHandler) ListRequests(c *gin.Context) {
	status := c.Query("status")
	if wantsAll(c) {
		items, err := h.requestService.ListForAdmin(c.Request.Context(), status)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.Success(http.StatusOK, items))
		return
	}

	page, err := h.requestService.SearchForAdmin(c.Request.Context(), status, listQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, page))
}

// GetStatistics aggregates approved requests by category, branch and status
// @Summary      Request statistics
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=model.StatisticsResponse}
// @Router       /api/admin/requests/statistics [get]
func (h *AdminRequestHandler) GetStatistics(c *gin.Context) {
	stats, err := h.requestService.Statistics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// GetRequest returns any request
// @Summary      Get request
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/admin/requests/{id} [get]
func (h *AdminRequestHandler) GetRequest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	found, err := h.requestService.GetForAdmin(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, found))
}

// RequestInfo sends a pending request back to its branch for more information
// @Summary      Request more information
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                       true  "Request ID"
// @Param        payload  body      service.InfoRequestInput  true  "Comment"
// @Success      200      {object}  response.Response{data=service.RequestResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/admin/requests/{id}/info-request [patch]
func (h *AdminRequestHandler) RequestInfo(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.InfoRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	updated, err := h.requestService.RequestMoreInfo(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}

// Decide approves or rejects a pending request
// @Summary      Decide request
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                    true  "Request ID"
// @Param        payload  body      service.DecisionInput  true  "Decision"
// @Success      200      {object}  response.Response{data=service.RequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/admin/requests/{id}/decision [patch]
func (h *AdminRequestHandler) Decide(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.DecisionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	decided, err := h.requestService.Decide(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, decided))
}

// DeleteRequest removes a request with its lines, history and attachments
// @Summary      Delete request
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/admin/requests/{id} [delete]
func (h *AdminRequestHandler) DeleteRequest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.requestService.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Request deleted successfully"))
}
