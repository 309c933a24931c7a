package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"collabsync/backend/internal/store"
)

// DocumentHandlers 是协同入口之外的最小文档管理面：建文档、查元信息。
// 内容的读写走 WebSocket 协同通道，不走这里。
type DocumentHandlers struct {
	docs *store.DocumentStore
}

func NewDocumentHandlers(docs *store.DocumentStore) *DocumentHandlers {
	return &DocumentHandlers{docs: docs}
}

type createDocumentRequest struct {
	Title string `json:"title"`
}

func (h *DocumentHandlers) CreateDocument(c *gin.Context) {
	// 从gin.Context获取用户信息；gin.Context对每个用户天然隔离
	userId, exists := c.Get("userId")
	if !exists {
		c.JSON(500, gin.H{"error": "User context missing"})
		return
	}
	ownerID, ok := userId.(uint64)
	if !ok {
		c.JSON(500, gin.H{"error": "Invalid user ID format"})
		return
	}

	var req createDocumentRequest
	_ = c.ShouldBindJSON(&req)
	if req.Title == "" {
		req.Title = "New Document"
	}

	docID := uuid.NewString()
	if err := h.docs.Create(c.Request.Context(), ownerID, docID, req.Title); err != nil {
		c.JSON(500, gin.H{"error": "create document failed"})
		return
	}
	c.JSON(200, gin.H{
		"docId":     docID,
		"ownerId":   ownerID,
		"title":     req.Title,
		"createdAt": time.Now().Format(time.RFC3339),
	})
}

func (h *DocumentHandlers) GetDocument(c *gin.Context) {
	docID := c.Param("documentID")
	if docID == "" {
		c.JSON(500, gin.H{"error": "Document ID missing"})
		return
	}

	content, err := h.docs.LoadContent(c.Request.Context(), docID)
	if err == store.ErrDocumentNotFound {
		c.JSON(404, gin.H{"error": "document not found"})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"error": "load document failed"})
		return
	}
	c.JSON(200, gin.H{"id": docID, "content": content})
}
