package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/ai-council/councild/pkg/progress"
)

// wsWriteTimeout bounds a single frame write to a slow client.
const wsWriteTimeout = 5 * time.Second

// wsClientMessage is an inbound frame from a progress subscriber.
type wsClientMessage struct {
	Type     string `json:"type"` // ack | heartbeat_response | reconnect
	Seq      int64  `json:"seq,omitempty"`
	SinceSeq int64  `json:"since_seq,omitempty"`
}

// progressStreamHandler handles GET /ws/:id. It upgrades to WebSocket
// and streams the request's progress messages in order. Clients ack
// received seqs, answer heartbeats, and resume after a disconnect with
// a reconnect frame carrying their last seen seq.
func (s *Server) progressStreamHandler(c *gin.Context) {
	requestID := c.Param("id")
	if _, err := s.requests.Get(c.Request.Context(), requestID); err != nil {
		respondError(c, err)
		return
	}

	var sinceSeq int64
	if v := c.Query("since_seq"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since_seq must be a non-negative integer"})
			return
		}
		sinceSeq = n
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.Server.AllowedWSOrigins,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub, err := s.bus.Subscribe(ctx, requestID, sinceSeq)
	if err != nil {
		slog.Error("Progress subscribe failed", "request_id", requestID, "error", err)
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer func() { sub.Close() }()

	s.writeFrame(ctx, conn, &progress.Message{
		RequestID: requestID,
		Kind:      progress.KindConnectionEstablished,
		Timestamp: time.Now(),
	})

	// Read loop runs aside the writer; it feeds client frames in and
	// cancels the stream when the connection drops.
	inbound := make(chan wsClientMessage)
	go func() {
		defer cancel()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg wsClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				slog.Warn("Invalid WebSocket message", "request_id", requestID, "error", err)
				continue
			}
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				// Bus closed us (overflow or idle); the client recovers
				// by reconnecting with its last acked seq.
				conn.Close(websocket.StatusNormalClosure, "subscription closed")
				return
			}
			if err := s.writeFrame(ctx, conn, msg); err != nil {
				return
			}
		case msg := <-inbound:
			switch msg.Type {
			case "ack":
				if err := sub.Ack(ctx, msg.Seq); err != nil {
					slog.Warn("Progress ack failed",
						"request_id", requestID, "seq", msg.Seq, "error", err)
				}
			case "heartbeat_response":
				sub.Touch()
			case "reconnect":
				// Re-attach from the requested seq; replay fills the gap.
				next, err := s.bus.Subscribe(ctx, requestID, msg.SinceSeq)
				if err != nil {
					slog.Error("Progress resubscribe failed",
						"request_id", requestID, "error", err)
					conn.Close(websocket.StatusInternalError, "resubscribe failed")
					return
				}
				sub.Close()
				sub = next
			}
		}
	}
}

// writeFrame sends one progress message with a bounded write deadline.
func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, msg *progress.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
