package handler

import (
	"net/http"
	"strings"

	"expensecontrol/internal/service"
	"expensecontrol/pkg/response"

	"github.com/gin-gonic/gin"
)

type AttachmentHandler struct {
	attachmentService service.AttachmentService
}

func NewAttachmentHandler(attachmentService service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachmentService: attachmentService}
}

// RegisterRoutes binds attachment endpoints. Both roles reach them; the service checks ownership.
func (h *AttachmentHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/requests/:id/attachments", h.Upload)
	router.GET("/requests/:id/attachments", h.List)
	router.GET("/attachments/:id/download", h.Download)
	router.DELETE("/attachments/:id", h.Delete)
}

// Upload stores one file for a pending request
// @Summary      Upload attachment
// @Tags         attachments
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int   true  "Request ID"
// @Param        file  formData  file  true  "PDF, JPEG or PNG up to 10MB"
// @Success      201   {object}  response.Response{data=service.AttachmentResponse}
// @Failure      400   {object}  response.Response
// @Failure      409   {object}  response.Response
// @Router       /api/requests/{id}/attachments [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	requestID, ok := parseID(c, "id")
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		badRequest(c, "file could not be read")
		return
	}
	defer file.Close()

	uploaded, err := h.attachmentService.Upload(c.Request.Context(), service.UploadInput{
		RequestID:   requestID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, uploaded))
}

// List returns the attachments of a request
// @Summary      List attachments
// @Tags         attachments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  response.Response{data=[]service.AttachmentResponse}
// @Router       /api/requests/{id}/attachments [get]
func (h *AttachmentHandler) List(c *gin.Context) {
	requestID, ok := parseID(c, "id")
	if !ok {
		return
	}
	attachments, err := h.attachmentService.List(c.Request.Context(), requestID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, attachments))
}

// Download streams the attachment bytes
// @Summary      Download attachment
// @Tags         attachments
// @Produce      octet-stream
// @Security     BearerAuth
// @Param        id   path  int  true  "Attachment ID"
// @Success      200  {file}    file
// @Failure      404  {object}  response.Response
// @Router       /api/attachments/{id}/download [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	download, err := h.attachmentService.Download(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	defer download.Content.Close()

	meta := download.Attachment
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, meta.Size, contentType, download.Content, map[string]string{
		"Content-Disposition": `attachment; filename="` + downloadName(meta) + `"`,
	})
}

// Delete removes an attachment of a pending request
// @Summary      Delete attachment
// @Tags         attachments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Attachment ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/attachments/{id} [delete]
func (h *AttachmentHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.attachmentService.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Attachment deleted successfully"))
}

// downloadName picks the filename offered to the browser. Double quotes would
// end the header value early, so they become single quotes.
func downloadName(a service.AttachmentResponse) string {
	name := a.OriginalName
	if strings.TrimSpace(name) == "" {
		name = a.StoredName
	}
	if strings.TrimSpace(name) == "" {
		name = "attachment"
	}
	return strings.ReplaceAll(name, `"`, "'")
}
