package stream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/pulse-chat/backend/internal/middleware"
	chatService "github.com/zhouzirui/pulse-chat/backend/internal/service/chat"
	"github.com/zhouzirui/pulse-chat/backend/pkg/logger"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
)

// Command types accepted from the client.
const (
	CommandSend   = "send"
	CommandCancel = "cancel"
	CommandReset  = "reset"
	CommandInput  = "input"
)

// inboundCommand 客户端指令。send 不带 text 时发送输入缓冲区。
type inboundCommand struct {
	Type string  `json:"type"`
	Text *string `json:"text,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type ackData struct {
	Command   string `json:"command"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// handleWebSocket pushes conversation events and executes client commands on the
// same connection. All writes go through one writer goroutine.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conv := middleware.WorkspaceFrom(r.Context()).Conversation()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithField("error", err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := logger.WithField("conversation", conv.ID())
	log.Info("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := conv.Subscribe(subscriberBuffer)
	defer unsubscribe()

	outbound := make(chan outgoingMessage, subscriberBuffer)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, conn, events, outbound, log)
		// Unblock the reader once nothing more can be written.
		cancel()
		_ = conn.Close()
	}()
	defer func() {
		cancel()
		<-writerDone
	}()

	enqueue(ctx, outbound, outgoingMessage{Type: "snapshot", Data: snapshotOf(conv)})

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		var cmd inboundCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				log.WithField("error", err).Warn("websocket read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		enqueue(ctx, outbound, h.execute(conv, cmd))
	}
}

func (h *Handler) execute(conv *chatService.Conversation, cmd inboundCommand) outgoingMessage {
	ack := ackData{Command: cmd.Type, Status: "ok"}

	switch cmd.Type {
	case CommandSend:
		text := conv.Input()
		if cmd.Text != nil {
			text = *cmd.Text
		}
		ticket, err := conv.Send(text)
		switch {
		case err == nil:
			ack.Status = "accepted"
			ack.MessageID = ticket.Question().ID
		case chatService.IsRejection(err):
			ack.Status = "ignored"
			ack.Reason = err.Error()
		default:
			return errorMessage(err.Error())
		}
	case CommandCancel:
		if !conv.Cancel() {
			ack.Status = "ignored"
			ack.Reason = "nothing in flight"
		}
	case CommandReset:
		conv.Reset()
	case CommandInput:
		if cmd.Text == nil {
			return errorMessage("input requires text")
		}
		conv.SetInput(*cmd.Text)
	default:
		return errorMessage("unknown command type")
	}

	return outgoingMessage{Type: "ack", Data: ack, Timestamp: time.Now().Unix()}
}

func errorMessage(message string) outgoingMessage {
	return outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
}

func enqueue(ctx context.Context, outbound chan<- outgoingMessage, msg outgoingMessage) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	select {
	case outbound <- msg:
	case <-ctx.Done():
	}
}

// writeLoop 负责所有写操作，并定期发送 ping。
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan chatService.Event, outbound <-chan outgoingMessage, log *logrus.Entry) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	write := func(msg outgoingMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(msg)
	}

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "conversation closed"),
					time.Now().Add(writeTimeout))
				return
			}
			err = write(outgoingMessage{Type: string(ev.Type), Data: ev, Timestamp: ev.At.Unix()})
		case msg := <-outbound:
			err = write(msg)
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err = conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				log.WithField("error", err).Debug("websocket write failed")
			}
			return
		}
	}
}
