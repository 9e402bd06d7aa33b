package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

// multipartOverhead 为表单边界与其他字段预留的字节数。
const multipartOverhead = 1 << 20

type mediaAltRequest struct {
	Alt string `json:"alt"`
}

// UploadMedia 接收 multipart 字段 file 与可选的 alt，超出上限返回 413。
func (a *API) UploadMedia(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.media.MaxBytes()+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, service.ErrMediaTooLarge.Error())
			return
		}
		respondError(c, http.StatusBadRequest, "file is required")
		return
	}
	if header.Size > a.media.MaxBytes() {
		respondError(c, http.StatusRequestEntityTooLarge, service.ErrMediaTooLarge.Error())
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to read upload")
		return
	}
	defer file.Close()

	asset, err := a.media.Upload(tenantIDOf(c), service.MediaUpload{
		FileName: header.Filename,
		Alt:      strings.TrimSpace(c.PostForm("alt")),
		Body:     file,
	})
	if err != nil {
		a.respondServiceError(c, err, "failed to store upload")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"media": asset})
}

// ListMedia 分页列出媒体文件，新上传的在前。
func (a *API) ListMedia(c *gin.Context) {
	page := parsePositiveInt(c.Query("page"), 1)
	perPage := parsePositiveInt(c.Query("perPage"), 0)
	result, err := a.media.List(tenantIDOf(c), page, perPage)
	if err != nil {
		a.respondServiceError(c, err, "failed to list media")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"media":      result.Assets,
		"total":      result.Total,
		"page":       result.Page,
		"perPage":    result.PerPage,
		"totalPages": result.TotalPages,
	})
}

func (a *API) GetMedia(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	asset, err := a.media.Get(tenantIDOf(c), id)
	if err != nil {
		a.respondServiceError(c, err, "failed to load media")
		return
	}
	c.JSON(http.StatusOK, gin.H{"media": asset})
}

// UpdateMedia 只允许修改替代文本。
func (a *API) UpdateMedia(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload mediaAltRequest
	if !bindJSON(c, &payload, "invalid media payload") {
		return
	}
	asset, err := a.media.UpdateAlt(tenantIDOf(c), id, payload.Alt)
	if err != nil {
		a.respondServiceError(c, err, "failed to update media")
		return
	}
	c.JSON(http.StatusOK, gin.H{"media": asset})
}

func (a *API) DeleteMedia(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := a.media.Delete(tenantIDOf(c), id); err != nil {
		a.respondServiceError(c, err, "failed to delete media")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "media deleted"})
}
