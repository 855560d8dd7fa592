package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	domainchat "studenthelper/internal/domain/chat"
	domainuser "studenthelper/internal/domain/user"
	"studenthelper/internal/infra/broker/kafka"
)

// MessageHandler serves the chat endpoints the browser client polls.
type MessageHandler struct {
	Store  domainchat.MessageStore
	Users  domainuser.Repository
	Events *kafka.MessageEvents
	Logger *slog.Logger
	Now    func() time.Time
}

type sendRequest struct {
	ReceiverID string          `json:"receiverId"`
	Content    string          `json:"content"`
	RelatedTo  *relatedPayload `json:"relatedTo"`
}

type relatedPayload struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (h *MessageHandler) Conversations(c *gin.Context) {
	claims, ok := principal(c)
	if !ok {
		abortUnauthorized(c)
		return
	}
	summaries, err := h.Store.ConversationsFor(c.Request.Context(), claims.UserID)
	if err != nil {
		h.serverError(c, "conversations load failed", err)
		return
	}
	out := make([]gin.H, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, conversationToWire(s))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "conversations": out})
}

func (h *MessageHandler) History(c *gin.Context) {
	claims, ok := principal(c)
	if !ok {
		abortUnauthorized(c)
		return
	}
	otherID := strings.TrimSpace(c.Param("otherUserId"))
	if otherID == "" {
		failRequest(c, "Missing user id")
		return
	}
	ctx := c.Request.Context()
	history, err := h.Store.Between(ctx, claims.UserID, otherID)
	if err != nil {
		h.serverError(c, "history load failed", err)
		return
	}
	// Opening a thread counts as reading it.
	if err := h.Store.MarkRead(ctx, claims.UserID, otherID); err != nil {
		h.logError(c, "mark read failed", err)
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].CreatedAt.Before(history[j].CreatedAt)
	})
	out := make([]gin.H, 0, len(history))
	for _, msg := range history {
		out = append(out, messageToWire(msg))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": out})
}

func (h *MessageHandler) Send(c *gin.Context) {
	claims, ok := principal(c)
	if !ok {
		abortUnauthorized(c)
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failRequest(c, "Invalid request body")
		return
	}
	req.ReceiverID = strings.TrimSpace(req.ReceiverID)
	req.Content = strings.TrimSpace(req.Content)
	if req.ReceiverID == "" || req.Content == "" {
		failLogical(c, "Receiver and content are required")
		return
	}
	if req.ReceiverID == claims.UserID {
		failLogical(c, "Cannot message yourself")
		return
	}

	ctx := c.Request.Context()
	receiver, err := h.Users.ByID(ctx, domainuser.ID(req.ReceiverID))
	if errors.Is(err, domainuser.ErrNotFound) {
		failLogical(c, "Recipient not found")
		return
	}
	if err != nil {
		h.serverError(c, "receiver lookup failed", err)
		return
	}

	msg := domainchat.StoredMessage{
		SenderID:     claims.UserID,
		SenderName:   claims.Name,
		ReceiverID:   string(receiver.ID),
		ReceiverName: receiver.Name,
		Content:      req.Content,
		CreatedAt:    h.now(),
		Related:      relatedFromPayload(req.RelatedTo),
	}
	stored, err := h.Store.Append(ctx, msg)
	if err != nil {
		h.serverError(c, "message store failed", err)
		return
	}
	h.Events.MessageSent(ctx, stored)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": messageToWire(stored)})
}

func (h *MessageHandler) Delete(c *gin.Context) {
	claims, ok := principal(c)
	if !ok {
		abortUnauthorized(c)
		return
	}
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil {
		failRequest(c, "Invalid message id")
		return
	}
	err = h.Store.Delete(c.Request.Context(), id, claims.UserID)
	switch {
	case errors.Is(err, domainchat.ErrMessageNotFound):
		failLogical(c, "Message not found")
	case errors.Is(err, domainchat.ErrNotMessageOwner):
		failLogical(c, "You can only delete your own messages")
	case err != nil:
		h.serverError(c, "message delete failed", err)
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message deleted"})
	}
}

func conversationToWire(s domainchat.ConversationSummary) gin.H {
	out := gin.H{
		"user":        gin.H{"id": s.UserID, "name": s.UserName},
		"lastMessage": s.LastMessage,
		"unreadCount": s.Unread,
	}
	if s.LastMessageAt.IsZero() {
		out["lastMessageTime"] = nil
	} else {
		out["lastMessageTime"] = s.LastMessageAt
	}
	if s.Related != nil {
		out["relatedTo"] = gin.H{"type": string(s.Related.Type), "id": s.Related.ID}
	}
	return out
}

func messageToWire(msg domainchat.StoredMessage) gin.H {
	out := gin.H{
		"id":        msg.ID,
		"sender":    gin.H{"id": msg.SenderID, "name": msg.SenderName},
		"content":   msg.Content,
		"createdAt": msg.CreatedAt,
		"read":      msg.Read,
	}
	if msg.Related != nil {
		out["relatedTo"] = gin.H{"type": string(msg.Related.Type), "id": msg.Related.ID}
	}
	return out
}

func relatedFromPayload(p *relatedPayload) *domainchat.RelatedEntity {
	if p == nil {
		return nil
	}
	kind := domainchat.RelatedType(strings.ToLower(strings.TrimSpace(p.Type)))
	id := strings.TrimSpace(p.ID)
	if !kind.Valid() || id == "" {
		return nil
	}
	return &domainchat.RelatedEntity{Type: kind, ID: id}
}

func (h *MessageHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func (h *MessageHandler) serverError(c *gin.Context, msg string, err error) {
	h.logError(c, msg, err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"message": "Internal server error",
	})
}

func (h *MessageHandler) logError(c *gin.Context, msg string, err error) {
	if h.Logger != nil {
		h.Logger.Error(msg, "error", err, "request_id", c.GetString("request_id"))
	}
}

var _ MessageHTTP = (*MessageHandler)(nil)
