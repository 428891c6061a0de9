package api

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/moibraahim/gymnation-task/internal/chat"
)

const wsWriteWait = 10 * time.Second

var turnUpgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsTurnFrame struct {
	Content    string `json:"content"`
	UseTools   *bool  `json:"use_tools"`
	UseRAG     bool   `json:"use_rag"`
	PromptType string `json:"prompt_type"`
}

type wsFrame struct {
	chat.Event
	Details     string `json:"details,omitempty"`
	NewMessages any    `json:"new_messages,omitempty"`
	Messages    any    `json:"messages,omitempty"`
}

// handleTurnWebsocket runs one turn per inbound frame and streams the turn's
// events back, finishing each turn with a messages or error frame.
func (h *Handler) handleTurnWebsocket(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.service.GetConversation(c.Request.Context(), id); err != nil {
		h.fail(c, "failed to load conversation", err)
		return
	}

	conn, err := turnUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(zap.String("conversation_id", id))
	ctx := c.Request.Context()

	write := func(frame wsFrame) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(frame); err != nil {
			logger.Debug("websocket write failed", zap.Error(err))
			return false
		}
		return true
	}

	for {
		var in wsTurnFrame
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, net.ErrClosed) {
				logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		if strings.TrimSpace(in.Content) == "" {
			if !write(wsFrame{Event: chat.Event{Type: chat.EventError, Error: "content is required"}}) {
				return
			}
			continue
		}

		req := sendMessageRequest{Content: in.Content, UseTools: in.UseTools, UseRAG: in.UseRAG, PromptType: in.PromptType}
		alive := true
		outcome, err := h.service.SendMessage(ctx, id, req.input(), func(ev chat.Event) {
			if alive {
				alive = write(wsFrame{Event: ev})
			}
		})
		if !alive {
			return
		}
		if err != nil {
			_, message := classify(err)
			if message == "" {
				message = "turn failed"
			}
			if !write(wsFrame{Event: chat.Event{Type: chat.EventError, Error: message}, Details: err.Error()}) {
				return
			}
			continue
		}

		if !write(wsFrame{Event: chat.Event{Type: chat.EventMessages}, NewMessages: outcome.NewMessages, Messages: outcome.Messages}) {
			return
		}
	}
}
