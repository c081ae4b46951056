package handler

import (
	"net/http"

	"expensecontrol/internal/middleware"
	"expensecontrol/internal/model"
	"expensecontrol/internal/service"
	"expensecontrol/pkg/response"

	"github.com/gin-gonic/gin"
)

// RequestHandler serves the branch side of the request lifecycle.
type RequestHandler struct {
	requestService service.RequestService
}

func NewRequestHandler(requestService service.RequestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/requests")
	branchOnly := middleware.RequireRole(model.RoleBranch)
	{
		requests.POST("", branchOnly, h.CreateRequest)
		requests.GET("", branchOnly, h.ListRequests)
		requests.GET("/:id", branchOnly, h.GetRequest)
		requests.PUT("/:id/resend", branchOnly, h.ResendRequest)
	}
}

// CreateRequest submits a new expense request for the caller's branch
// @Summary      Create request
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRequestInput  true  "Request"
// @Success      201      {object}  response.Response{data=service.RequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var req service.CreateRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	created, err := h.requestService.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, created))
}

// ListRequests lists the branch's requests, paged unless all=true
// @Summary      List branch requests
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        page  query     int     false  "Page (0-based)"
// @Param        size  query     int     false  "Page size (max 50)"
// @Param        sort  query     string  false  "RECENT, OLD, VALUE_DESC, VALUE_ASC or TITLE"
// @Param        q     query     string  false  "Free-text search"
// @Param        all   query     bool    false  "Return every request unpaged"
// @Success      200   {object}  response.Response{data=pagination.Page[service.RequestResponse]}
// @Router       /api/requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	if wantsAll(c) {
		items, err := h.requestService.ListForBranch(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.Success(http.StatusOK, items))
		return
	}

	page, err := h.requestService.SearchForBranch(c.Request.Context(), listQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, page))
}

// GetRequest returns one of the branch's requests
// @Summary      Get branch request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	found, err := h.requestService.GetForBranch(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, found))
}

// ResendRequest resubmits a request that is awaiting information
// @Summary      Resend request
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                         true  "Request ID"
// @Param        payload  body      service.ResendRequestInput  true  "Corrected request"
// @Success      200      {object}  response.Response{data=service.RequestResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/resend [put]
func (h *RequestHandler) ResendRequest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.ResendRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	resent, err := h.requestService.Resend(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, resent))
}
