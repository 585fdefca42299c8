package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"debate_live/internal/service"
)

// TopicHandler 處理與辯論題目相關的請求
type TopicHandler struct {
	topicService *service.TopicService
}

func NewTopicHandler(topicService *service.TopicService) *TopicHandler {
	return &TopicHandler{topicService: topicService}
}

// CreateTopic 處理創建新題目的請求
func (h *TopicHandler) CreateTopic(c *gin.Context) {
	var input struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, _ := c.Get("userID")

	topic, err := h.topicService.CreateTopic(input.Title, input.Description, userID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "創建題目失敗"})
		return
	}

	c.JSON(http.StatusCreated, topic)
}

// GetTopic 處理獲取單一題目的請求
func (h *TopicHandler) GetTopic(c *gin.Context) {
	topicID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "無效的題目 ID"})
		return
	}

	topic, err := h.topicService.GetTopic(uint(topicID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "題目不存在"})
		return
	}

	c.JSON(http.StatusOK, topic)
}

// ListTopics 處理獲取題目列表的請求
func (h *TopicHandler) ListTopics(c *gin.Context) {
	topics, err := h.topicService.ListTopics()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "無法搜尋題目列表"})
		return
	}

	c.JSON(http.StatusOK, topics)
}
