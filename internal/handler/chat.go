package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"multichat/internal/model"
	"multichat/internal/service"
)

// Chat 对话接口
// @Summary      发送消息
// @Description  发送一条消息并返回模型回复；conversation_id 为空或不存在时创建对话。支持 JSON 或带 files 的 multipart 表单
// @Tags         对话
// @Accept       json,mpfd
// @Produce      json
// @Param        request  body      model.ChatRequest  true  "对话请求"
// @Success      200      {object}  model.ChatResponse
// @Failure      400      {object}  ErrorResponse  "请求参数错误"
// @Failure      413      {object}  ErrorResponse  "附件过大"
// @Failure      429      {object}  ErrorResponse  "请求过于频繁"
// @Failure      502      {object}  ErrorResponse  "模型调用失败"
// @Router       /api/chat [post]
func (h *Handler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		if err := c.ShouldBind(&req); err != nil {
			badRequest(c, "Invalid request body", err)
			return
		}
		attachments, err := h.readAttachments(c)
		if errors.Is(err, service.ErrDocumentTooLarge) {
			fail(c, err, "Attachment too large")
			return
		}
		if err != nil {
			badRequest(c, "Invalid attachment", err)
			return
		}
		req.Attachments = attachments
	} else if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	resp, err := h.chats.Chat(c.Request.Context(), userID(c), &req)
	if err != nil {
		fail(c, err, "Chat failed")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) readAttachments(c *gin.Context) ([]model.Attachment, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	headers := form.File["files"]
	attachments := make([]model.Attachment, 0, len(headers))
	for _, fh := range headers {
		data, err := h.readFormFile(fh)
		if err != nil {
			return nil, err
		}
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(data)
		}
		attachments = append(attachments, model.Attachment{
			Filename:    fh.Filename,
			ContentType: contentType,
			Data:        data,
		})
	}
	return attachments, nil
}

func (h *Handler) readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > h.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", service.ErrDocumentTooLarge, fh.Filename, fh.Size, h.maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", service.ErrDocumentTooLarge, fh.Filename, h.maxBytes)
	}
	return data, nil
}

// GenerateTitle 生成对话标题
// @Summary      生成标题
// @Tags         对话
// @Accept       json
// @Produce      json
// @Param        request  body      model.GenerateTitleRequest  true  "首条消息"
// @Success      200      {object}  model.TitleResponse
// @Failure      400      {object}  ErrorResponse
// @Router       /api/generate-title [post]
func (h *Handler) GenerateTitle(c *gin.Context) {
	var req model.GenerateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	title, err := h.chats.GenerateTitle(c.Request.Context(), req.Content, req.Model)
	if err != nil {
		fail(c, err, "Title generation failed")
		return
	}
	c.JSON(http.StatusOK, model.TitleResponse{Title: title})
}

// Models 支持的模型
// @Summary      模型列表
// @Tags         对话
// @Produce      json
// @Success      200  {object}  model.ModelsResponse
// @Router       /api/models [get]
func (h *Handler) Models(c *gin.Context) {
	var models []model.Capability
	if h.catalog != nil {
		models = h.catalog.Models()
	}
	if models == nil {
		models = []model.Capability{}
	}
	c.JSON(http.StatusOK, model.ModelsResponse{Models: models})
}
