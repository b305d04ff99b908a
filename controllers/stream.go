package controllers

import (
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stellar/go/support/log"

	"github.com/saif727/hedera-wallet-backend/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// control frame payloads are limited to 125 bytes, two of them the close code
	maxCloseReason = 123
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamTopic handles GET /api/v1/topics/:topic_id/stream. Each message
// published to the topic after the connection opens is sent as one JSON
// text frame. The socket closes when the client goes away or the stream fails.
func (ctrl *WalletController) StreamTopic(c *gin.Context) {
	sub, err := ctrl.Service.SubscribeToTopic(c.Param("topic_id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Stop()
		return
	}
	logger := ctrl.Service.Config.Log.WithFields(log.F{"topic": sub.TopicID, "remote": c.ClientIP()})
	logger.Debug("stream client connected")

	closed := make(chan struct{})
	go readPump(conn, closed)
	writePump(conn, sub, closed, logger)
}

// readPump discards client frames and keeps the read deadline fresh so
// pongs are seen. closed is closed when the client goes away.
func readPump(conn *websocket.Conn, closed chan struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, sub *services.Subscription, closed <-chan struct{}, logger *log.Entry) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Stop()
		conn.Close()
		logger.Debug("stream client disconnected")
	}()

	for {
		select {
		case m := <-sub.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				logger.WithField("err", err).Warn("failed to write stream message")
				return
			}
		case <-sub.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := sub.Err(); err != nil {
				msg = websocket.FormatCloseMessage(websocket.CloseInternalServerErr, closeReason(err.Error()))
			}
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		case <-closed:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeReason cuts reason to fit a close frame without splitting a rune.
func closeReason(reason string) string {
	if len(reason) <= maxCloseReason {
		return reason
	}
	end := maxCloseReason
	for end > 0 && !utf8.RuneStart(reason[end]) {
		end--
	}
	return reason[:end]
}
