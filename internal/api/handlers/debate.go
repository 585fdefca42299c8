package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"debate_live/internal/service"
)

// DebateHandler 處理辯論列表相關的請求
type DebateHandler struct {
	debateService *service.DebateService
}

func NewDebateHandler(debateService *service.DebateService) *DebateHandler {
	return &DebateHandler{debateService: debateService}
}

// CreateDebate 處理發起辯論的請求，回傳含房間 ID 的辯論紀錄
func (h *DebateHandler) CreateDebate(c *gin.Context) {
	var input struct {
		TopicID uint   `json:"topic_id" binding:"required"`
		Side    string `json:"side"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, _ := c.Get("userID")

	debate, err := h.debateService.CreateDebate(input.TopicID, userID.(uint), input.Side)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "發起辯論失敗"})
		return
	}

	c.JSON(http.StatusCreated, debate)
}

// ListDebates 處理獲取開放辯論列表的請求
func (h *DebateHandler) ListDebates(c *gin.Context) {
	debates, err := h.debateService.ListOpenDebates()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "無法搜尋辯論列表"})
		return
	}

	c.JSON(http.StatusOK, debates)
}

// GetDebate 處理獲取單場辯論紀錄的請求
func (h *DebateHandler) GetDebate(c *gin.Context) {
	debate, err := h.debateService.GetDebate(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "辯論不存在"})
		return
	}

	c.JSON(http.StatusOK, debate)
}

// JoinDebate 處理報名加入辯論的請求
// 發起人報名自己的辯論會被拒絕
func (h *DebateHandler) JoinDebate(c *gin.Context) {
	userID, _ := c.Get("userID")

	debate, err := h.debateService.JoinDebate(c.Param("roomId"), userID.(uint))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCannotJoinOwnDebate):
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  service.ErrCodeCannotJoinOwnDebate,
				"error": err.Error(),
			})
		case errors.Is(err, service.ErrDebateNotOpen):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "辯論不存在"})
		}
		return
	}

	c.JSON(http.StatusOK, debate)
}
