package handler

import (
	"net/http"

	"expensecontrol/internal/middleware"
	"expensecontrol/internal/model"
	"expensecontrol/internal/service"
	"expensecontrol/pkg/response"

	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	accountService service.AccountService
}

func NewAccountHandler(accountService service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

func (h *AccountHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/auth/me", h.GetMe)

	accounts := router.Group("/admin/accounts", middleware.RequireRole(model.RoleAdmin))
	{
		accounts.GET("", h.ListAccounts)
		accounts.POST("", h.CreateAccount)
		accounts.PATCH("/:username/active", h.SetActive)
	}
}

// GetMe returns the authenticated caller
// @Summary      Get current account
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.MeResponse}
// @Failure      401  {object}  response.Response
// @Router       /api/auth/me [get]
func (h *AccountHandler) GetMe(c *gin.Context) {
	me, err := h.accountService.Me(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, me))
}

// ListAccounts
// @Summary      List accounts
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.AccountResponse}
// @Router       /api/admin/accounts [get]
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.accountService.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, accounts))
}

// CreateAccount registers an ADMIN or BRANCH profile for a username of the identity provider
// @Summary      Create account
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateAccountInput  true  "Account"
// @Success      201      {object}  response.Response{data=service.AccountResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/admin/accounts [post]
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req service.CreateAccountInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	created, err := h.accountService.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, created))
}

// SetActive activates or deactivates an account
// @Summary      Set account active flag
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        username  path      string                  true  "Username"
// @Param        payload   body      service.SetActiveInput  true  "Active flag"
// @Success      200       {object}  response.Response{data=service.AccountResponse}
// @Failure      400       {object}  response.Response
// @Router       /api/admin/accounts/{username}/active [patch]
func (h *AccountHandler) SetActive(c *gin.Context) {
	var req service.SetActiveInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	updated, err := h.accountService.SetActive(c.Request.Context(), c.Param("username"), req.Active)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}
