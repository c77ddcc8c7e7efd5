package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"DiaBot/middleware"
	"DiaBot/models"
	"DiaBot/pkg/chat"

	"github.com/gin-gonic/gin"
)

const summaryTimeLayout = "2006-01-02 15:04:05"

type chatRequest struct {
	NewChat  bool           `json:"new_chat"`
	Messages []chat.Message `json:"messages"`
	Query    *string        `json:"query"`
}

// ChatState returns the session buffer and the attached conversation id.
func (h *Handler) ChatState() gin.HandlerFunc {
	return func(c *gin.Context) {
		st := middleware.CurrentSession(c)
		turns := st.Buffer
		if turns == nil {
			turns = []models.Turn{}
		}
		c.JSON(http.StatusOK, gin.H{"chat_history": turns, "chat_id": st.ConversationID})
	}
}

// PostChat dispatches a new-chat or query event to the reconciler.
func (h *Handler) PostChat() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body chatRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: missing query"})
			return
		}
		id := middleware.CurrentIdentity(c)
		st := middleware.CurrentSession(c)
		ctx := c.Request.Context()

		if body.NewChat {
			res, err := h.Chat.HandleNewChat(ctx, id, st, body.Messages)
			if err != nil {
				abortWithError(c, err)
				return
			}
			resp := gin.H{"message": "New chat started"}
			if res.ConversationID != 0 {
				resp["chat_id"] = res.ConversationID
			}
			if !res.Created {
				resp["message"] = "Continuing current chat"
			}
			c.JSON(http.StatusCreated, resp)
			return
		}

		if body.Query == nil || strings.TrimSpace(*body.Query) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: missing query"})
			return
		}
		if h.Limiter != nil && !h.Limiter.DuplicateGuard(middleware.ClientKey(c), *body.Query) {
			c.JSON(http.StatusTooManyRequests, gin.H{"message": "duplicate message, please wait"})
			return
		}

		res, err := h.Chat.HandleQuery(ctx, id, st, *body.Query)
		if err != nil {
			if h.Limiter != nil {
				h.Limiter.ForgetDuplicate(middleware.ClientKey(c), *body.Query)
			}
			abortWithError(c, err)
			return
		}
		resp := gin.H{"response": res.Reply, "last_message": res.Reply}
		if res.ConversationID != 0 {
			resp["chat_id"] = res.ConversationID
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ChatTranscripts replays every conversation of the caller.
func (h *Handler) ChatTranscripts() gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := h.Chat.GetTranscript(c.Request.Context(), middleware.CurrentIdentity(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chat_history": out})
	}
}

// ChatSummaries lists title and last message of each conversation, newest first.
func (h *Handler) ChatSummaries() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := middleware.CurrentIdentity(c)
		if id == nil {
			c.JSON(http.StatusForbidden, gin.H{"message": "User not authenticated."})
			return
		}
		convs, err := h.Convs.ListByOwner(c.Request.Context(), id.UserID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		out := make([]gin.H, 0, len(convs))
		for _, conv := range convs {
			out = append(out, gin.H{
				"id":           conv.ID,
				"title":        conv.Title,
				"last_message": conv.LastMessage,
				"timestamp":    conv.Timestamp.Format(summaryTimeLayout),
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

// UpdateChat overwrites the last_message of one of the caller's conversations.
func (h *Handler) UpdateChat() gin.HandlerFunc {
	return func(c *gin.Context) {
		chatID, err := strconv.ParseUint(c.Param("chat_id"), 10, 64)
		if err != nil || chatID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid chat id"})
			return
		}
		var body struct {
			LastMessage *string `json:"last_message"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.LastMessage == nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: missing required fields"})
			return
		}

		id := middleware.CurrentIdentity(c)
		if err := h.Convs.SetLastMessage(c.Request.Context(), uint(chatID), id.UserID, *body.LastMessage); err != nil {
			if chat.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"message": "Chat not found"})
				return
			}
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Chat updated successfully!"})
	}
}
