package services

import (
	"strings"

	"sage/types"

	"github.com/charmbracelet/log"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func (a *Api) WsUpgrade() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Notifications is the page's live channel: prompt and seed edits come in,
// session state and images go out.
func (a *Api) Notifications() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {

		clientId := strings.TrimSpace(conn.Params("id"))
		if clientId == "" {
			conn.WriteMessage(websocket.CloseMessage, []byte("missing client id"))
			conn.Close()
			return
		}
		logger := log.With("component", "ws", "session", clientId)

		client := NewWSClient(clientId, conn)
		a.hub.Add(client)
		go client.writeLoop()

		session := a.sessions.Open(clientId)
		a.hub.SendTo(clientId, stateEvent(clientId, session.Snapshot()))
		session.Start()
		logger.Info("client connected")

		client.readPump(func(msg types.ClientMessage) {
			switch msg.Type {
			case "prompt":
				session.EditPrompt(msg.Prompt)
			case "seed":
				session.EditSeed(msg.Seed)
			default:
				logger.Warn("unknown client message", "type", msg.Type)
			}
		}, func() {
			a.hub.Remove(client)
			a.sessions.Close(session)
		})

		<-client.done
		logger.Info("client disconnected")
	})
}
