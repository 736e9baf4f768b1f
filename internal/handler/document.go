package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"multichat/internal/model"
	"multichat/internal/service"
)

// UploadDocument 上传文档
// @Summary      上传文档
// @Description  上传 .txt/.md 文档，切分后用于后续对话检索；conversation_id 为空时对所有对话可见
// @Tags         文档
// @Accept       mpfd
// @Produce      json
// @Param        file             formData  file    true   "文档"
// @Param        conversation_id  formData  string  false  "对话ID"
// @Success      200              {object}  model.UploadDocumentResponse
// @Failure      400              {object}  ErrorResponse
// @Failure      413              {object}  ErrorResponse  "文件过大"
// @Router       /api/upload-document [post]
func (h *Handler) UploadDocument(c *gin.Context) {
	if h.docs == nil {
		unavailable(c, "Document service")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "Missing file", err)
		return
	}
	data, err := h.readFormFile(fh)
	if err != nil {
		fail(c, err, "Failed to read document")
		return
	}

	resp, err := h.docs.Upload(c.Request.Context(), &service.UploadInput{
		UserID:         userID(c),
		ConversationID: c.PostForm("conversation_id"),
		Filename:       fh.Filename,
		Data:           data,
	})
	if err != nil {
		fail(c, err, "Document upload failed")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListDocuments 文档列表
// @Summary      文档列表
// @Tags         文档
// @Produce      json
// @Param        conversation_id  query     string  false  "对话ID，为空时返回全部文档"
// @Success      200              {object}  model.DocumentListResponse
// @Router       /api/documents [get]
func (h *Handler) ListDocuments(c *gin.Context) {
	if h.docs == nil {
		unavailable(c, "Document service")
		return
	}
	docs, err := h.docs.List(c.Request.Context(), userID(c), c.Query("conversation_id"))
	if err != nil {
		fail(c, err, "Failed to list documents")
		return
	}
	if docs == nil {
		docs = []model.Document{}
	}
	c.JSON(http.StatusOK, model.DocumentListResponse{Documents: docs})
}

// ScrapeURL 抓取网页
// @Summary      抓取网页
// @Description  返回网页标题和清洗后的正文（最多 5000 字符）
// @Tags         工具
// @Accept       json
// @Produce      json
// @Param        request  body      model.ScrapeRequest  true  "网页地址"
// @Success      200      {object}  model.ScrapeResponse
// @Failure      400      {object}  ErrorResponse  "地址无效"
// @Failure      502      {object}  ErrorResponse  "抓取失败"
// @Router       /api/scrape-url [post]
func (h *Handler) ScrapeURL(c *gin.Context) {
	var req model.ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	resp, err := h.scraper.Scrape(c.Request.Context(), req.URL)
	if err != nil {
		fail(c, err, "Failed to scrape URL")
		return
	}
	c.JSON(http.StatusOK, resp)
}
