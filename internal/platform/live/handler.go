package live

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/relayloop/relayloop/internal/platform/auth"
)

const (
	sendBuffer = 256
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4096
)

// DepartmentResolver returns the department that owns a patient.
type DepartmentResolver interface {
	Department(ctx context.Context, patientID uuid.UUID) (string, error)
}

// Handler upgrades requests to websocket connections and checks each
// requested topic against the caller's scope.
type Handler struct {
	hub      *Hub
	patients DepartmentResolver
	upgrader gorillawebsocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler returns a websocket handler. Browser connections are only
// accepted from allowedOrigins; a "*" entry accepts any origin.
func NewHandler(hub *Hub, patients DepartmentResolver, allowedOrigins []string, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		patients: patients,
		logger:   logger,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/live", h.Connect, auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
}

// Connect upgrades the connection. Initial topics may be passed as a
// comma-separated topics query parameter.
func (h *Handler) Connect(c echo.Context) error {
	scope := auth.ScopeFromContext(c.Request().Context())
	var initial []string
	if q := c.QueryParam("topics"); q != "" {
		initial = strings.Split(q, ",")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return nil
	}

	client := NewClient(uuid.New().String(), sendBuffer)
	h.hub.Register(client)
	h.apply(context.Background(), client, scope, ClientMessage{Action: "subscribe", Topics: initial})

	go h.writePump(client, ws)
	go h.readPump(client, scope, ws)
	return nil
}

// Allowed filters topics down to the ones scope may subscribe to.
func (h *Handler) Allowed(ctx context.Context, scope auth.Scope, topics []string) (allowed, denied []string) {
	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		if h.canSubscribe(ctx, scope, topic) {
			allowed = append(allowed, topic)
		} else {
			denied = append(denied, topic)
		}
	}
	return allowed, denied
}

func (h *Handler) canSubscribe(ctx context.Context, scope auth.Scope, topic string) bool {
	kind, key, ok := ParseTopic(topic)
	if !ok {
		return false
	}
	if kind == "department" {
		return scope.Allows(key)
	}
	id, err := uuid.Parse(key)
	if err != nil {
		return false
	}
	if !scope.Restricted() {
		return true
	}
	dept, err := h.patients.Department(ctx, id)
	if err != nil {
		return false
	}
	return scope.Allows(dept)
}

func (h *Handler) apply(ctx context.Context, client *Client, scope auth.Scope, msg ClientMessage) {
	if msg.Action != "subscribe" {
		h.hub.ProcessMessage(client, msg)
		return
	}
	allowed, denied := h.Allowed(ctx, scope, msg.Topics)
	h.hub.Subscribe(client, allowed)
	if len(denied) == 0 {
		return
	}
	data, err := json.Marshal(Event{Type: "subscription.denied", Topics: denied, Timestamp: time.Now().UTC()})
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

func (h *Handler) readPump(client *Client, scope auth.Scope, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessage)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		h.apply(context.Background(), client, scope, msg)
	}
}

func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
