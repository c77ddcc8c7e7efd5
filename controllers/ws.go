package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"DiaBot/pkg/chat"
	"DiaBot/pkg/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsReadLimit  = 1 << 20 // 1MB
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS handled at HTTP level; allow WS here
		return true
	},
}

type wsInbound struct {
	Type     string         `json:"type"`
	Messages []chat.Message `json:"messages"`
	Query    string         `json:"query"`
}

type wsOutbound struct {
	Type     string `json:"type"`
	ChatID   uint   `json:"chat_id,omitempty"`
	Created  *bool  `json:"created,omitempty"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ChatWS serves chat events over one socket. The session buffer lives as long
// as the connection.
//
// Client protocol (JSON messages):
//
//	-> {type: "new_chat", messages: [{isUser, content}]}
//	<- {type: "created", created: bool, chat_id?: number}
//	-> {type: "query", query: string}
//	<- {type: "response", response: string, chat_id?: number}
//	<- {type: "error", error: string}
func (h *Handler) ChatWS() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Authenticate via optional ?token=JWT
		var id *chat.Identity
		if tokenStr := strings.TrimSpace(c.Query("token")); tokenStr != "" {
			info, err := h.Auth.Parse(tokenStr)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
				return
			}
			id = &info.Identity
		}
		slotKey := "anon@" + c.ClientIP()
		if id != nil {
			slotKey = strconv.FormatUint(uint64(id.UserID), 10)
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("[ws] upgrade error")
			return
		}
		defer conn.Close()

		conn.SetReadLimit(wsReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()
		go keepAlive(ctx, conn)

		st := &session.State{ID: uuid.NewString()}
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Msg("[ws] read message error")
				}
				return
			}
			if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
				continue
			}
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

			out := h.handleWSMessage(ctx, id, st, slotKey, msg)
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(out); err != nil {
				log.Warn().Err(err).Msg("[ws] write error")
				return
			}
		}
	}
}

func (h *Handler) handleWSMessage(ctx context.Context, id *chat.Identity, st *session.State, slotKey string, msg []byte) wsOutbound {
	var in wsInbound
	if err := json.Unmarshal(msg, &in); err != nil {
		return wsOutbound{Type: "error", Error: "invalid payload"}
	}

	switch strings.ToLower(strings.TrimSpace(in.Type)) {
	case "new_chat":
		res, err := h.Chat.HandleNewChat(ctx, id, st, in.Messages)
		if err != nil {
			return wsError(err)
		}
		return wsOutbound{Type: "created", Created: &res.Created, ChatID: res.ConversationID}
	case "query":
		if h.Limiter != nil {
			if !h.Limiter.DuplicateGuard(slotKey, in.Query) {
				return wsOutbound{Type: "error", Error: "duplicate message, please wait"}
			}
			release := h.Limiter.AcquireUserSlot(slotKey)
			defer release()
		}
		res, err := h.Chat.HandleQuery(ctx, id, st, in.Query)
		if err != nil {
			if h.Limiter != nil {
				h.Limiter.ForgetDuplicate(slotKey, in.Query)
			}
			return wsError(err)
		}
		return wsOutbound{Type: "response", Response: res.Reply, ChatID: res.ConversationID}
	default:
		return wsOutbound{Type: "error", Error: "unknown message type"}
	}
}

func wsError(err error) wsOutbound {
	switch {
	case errors.Is(err, chat.ErrValidation):
		return wsOutbound{Type: "error", Error: "Invalid request: missing query"}
	case errors.Is(err, chat.ErrUpstream):
		return wsOutbound{Type: "error", Error: "Request could not be processed."}
	}
	log.Error().Err(err).Msg("[ws] chat event failed")
	return wsOutbound{Type: "error", Error: "internal error"}
}

// keepAlive pings until ctx is done. WriteControl is safe alongside WriteJSON.
func keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
