package handler

import (
	"net/http"
	"strconv"

	"expensecontrol/internal/service"
	"expensecontrol/pkg/pagination"
	"expensecontrol/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeError answers with the status and message carried by a service error.
func writeError(c *gin.Context, err error) {
	status, body := response.FromError(err)
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, message))
}

// parseID reads a positive numeric path parameter, answering 400 when it is not one.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 63)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// listQuery collects page, size, sort and q from the query string.
func listQuery(c *gin.Context) service.ListQuery {
	params := pagination.Parse(c)
	return service.ListQuery{
		Page:  params.Page,
		Size:  params.Size,
		Sort:  c.Query("sort"),
		Query: c.Query("q"),
	}
}

// wantsAll reports whether the caller asked for the unpaged listing.
func wantsAll(c *gin.Context) bool {
	all, _ := strconv.ParseBool(c.Query("all"))
	return all
}
