package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"multichat/internal/model"
	httputil "multichat/internal/pkg/http"
)

// chatView 同时输出 _id 和 id，兼容两种客户端
type chatView struct {
	model.Chat
	ID string `json:"id"`
}

// ListChats 对话列表
// @Summary      对话列表
// @Description  按最近更新时间倒序返回当前用户的对话
// @Tags         对话管理
// @Produce      json
// @Param        limit  query     int  false  "返回条数，默认 20"
// @Success      200    {object}  model.ChatListResponse
// @Router       /api/chats [get]
func (h *Handler) ListChats(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	chats, err := h.chats.ListChats(c.Request.Context(), userID(c), limit)
	if err != nil {
		fail(c, err, "Failed to list chats")
		return
	}
	views := make([]chatView, len(chats))
	for i, chat := range chats {
		views[i] = chatView{Chat: chat, ID: chat.ID}
	}
	c.JSON(http.StatusOK, gin.H{"chats": views})
}

// CreateChat 创建对话
// @Summary      创建对话
// @Tags         对话管理
// @Accept       json
// @Produce      json
// @Param        request  body      model.CreateChatRequest  true  "对话信息"
// @Success      201      {object}  model.CreateChatResponse
// @Failure      400      {object}  ErrorResponse
// @Router       /api/chats [post]
func (h *Handler) CreateChat(c *gin.Context) {
	var req model.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	chatID, err := h.chats.CreateChat(c.Request.Context(), userID(c), &req)
	if err != nil {
		fail(c, err, "Failed to create chat")
		return
	}
	c.JSON(http.StatusCreated, model.CreateChatResponse{Success: true, ChatID: chatID})
}

// History 对话历史
// @Summary      对话历史
// @Tags         对话管理
// @Produce      json
// @Param        id     path      string  true   "对话ID"
// @Param        limit  query     int     false  "返回条数，默认 50"
// @Success      200    {object}  model.HistoryResponse
// @Failure      404    {object}  ErrorResponse  "对话不存在"
// @Router       /api/chats/{id} [get]
func (h *Handler) History(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	msgs, err := h.chats.History(c.Request.Context(), userID(c), c.Param("id"), limit)
	if err != nil {
		fail(c, err, "Failed to load history")
		return
	}
	if msgs == nil {
		msgs = []model.StoredMessage{}
	}
	c.JSON(http.StatusOK, model.HistoryResponse{Messages: msgs})
}

// SaveMessage 追加消息
// @Summary      追加消息
// @Description  只保存消息，不调用模型
// @Tags         对话管理
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "对话ID"
// @Param        request  body      model.SaveMessageRequest  true  "消息"
// @Success      200      {object}  model.SuccessResponse
// @Failure      404      {object}  ErrorResponse  "对话不存在"
// @Router       /api/chats/{id}/messages [post]
func (h *Handler) SaveMessage(c *gin.Context) {
	var req model.SaveMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if err := h.chats.SaveMessage(c.Request.Context(), userID(c), c.Param("id"), &req); err != nil {
		fail(c, err, "Failed to save message")
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Success: true})
}

// DeleteChat 删除对话
// @Summary      删除对话
// @Description  删除对话及其消息、文档；对话不存在时 success 为 false
// @Tags         对话管理
// @Produce      json
// @Param        id   path      string  true  "对话ID"
// @Success      200  {object}  model.SuccessResponse
// @Router       /api/chats/{id} [delete]
func (h *Handler) DeleteChat(c *gin.Context) {
	ok, err := h.chats.DeleteChat(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		fail(c, err, "Failed to delete chat")
		return
	}
	resp := model.SuccessResponse{Success: ok}
	if !ok {
		resp.Message = "chat not found"
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateSystemPrompt 更新系统提示词
// @Summary      更新系统提示词
// @Tags         对话管理
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "对话ID"
// @Param        request  body      model.UpdateSystemPromptRequest  true  "提示词，空字符串表示清除"
// @Success      200      {object}  model.SuccessResponse
// @Router       /api/chats/{id}/system-prompt [patch]
func (h *Handler) UpdateSystemPrompt(c *gin.Context) {
	var req model.UpdateSystemPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	ok, err := h.chats.UpdateSystemPrompt(c.Request.Context(), userID(c), c.Param("id"), req.SystemPrompt)
	if err != nil {
		fail(c, err, "Failed to update system prompt")
		return
	}
	resp := model.SuccessResponse{Success: ok}
	if !ok {
		resp.Message = "chat not found"
	}
	c.JSON(http.StatusOK, resp)
}

func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeValidation, "Invalid limit", raw))
		return 0, false
	}
	return n, true
}
