package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/netwarden/warden/config/parsing"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = &websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  4096,
	// origins are enforced by the cors middleware
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *handler) streamTraffic(ctx *gin.Context) {
	// swagger:route GET /traffic/stream Traffic streamTrafficRequest
	//
	// Stream observations as JSON text messages over a websocket.

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		parsing.Logger().WithFields(map[string]any{"kind": "api"}).Debugf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ch, cancel := h.c.Subscribe()
	defer cancel()

	// the client is not expected to send anything, reading detects the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case obs, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(obs); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
