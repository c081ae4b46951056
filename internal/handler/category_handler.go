package handler

import (
	"net/http"

	"expensecontrol/internal/middleware"
	"expensecontrol/internal/model"
	"expensecontrol/internal/service"
	"expensecontrol/pkg/response"

	"github.com/gin-gonic/gin"
)

type CategoryHandler struct {
	categoryService service.CategoryService
}

func NewCategoryHandler(categoryService service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

func (h *CategoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/categories", h.ListActive)

	admin := router.Group("/admin/categories", middleware.RequireRole(model.RoleAdmin))
	{
		admin.GET("", h.ListAll)
		admin.POST("", h.CreateCategory)
		admin.PATCH("/:id/deactivate", h.Deactivate)
	}
}

// ListActive returns the categories a request can be filed under
// @Summary      List active categories
// @Tags         categories
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.CategoryResponse}
// @Router       /api/categories [get]
func (h *CategoryHandler) ListActive(c *gin.Context) {
	categories, err := h.categoryService.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, categories))
}

// ListAll returns every category, inactive ones included
// @Summary      List all categories
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.CategoryResponse}
// @Router       /api/admin/categories [get]
func (h *CategoryHandler) ListAll(c *gin.Context) {
	categories, err := h.categoryService.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, categories))
}

// CreateCategory
// @Summary      Create category
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateCategoryInput  true  "Category"
// @Success      201      {object}  response.Response{data=service.CategoryResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/admin/categories [post]
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req service.CreateCategoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	created, err := h.categoryService.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, created))
}

// Deactivate hides a category from new requests
// @Summary      Deactivate category
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Category ID"
// @Success      200  {object}  response.Response{data=service.CategoryResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/admin/categories/{id}/deactivate [patch]
func (h *CategoryHandler) Deactivate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	category, err := h.categoryService.Deactivate(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, category))
}
