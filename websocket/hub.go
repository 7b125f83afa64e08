package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/herbreserve_backend/models"
)

// Define notification types
const (
	NotificationTypeConnected             = "connected"
	NotificationTypeDailyProfitCredited   = "daily_profit_credited"
	NotificationTypeCommissionCredited    = "team_commission_credited"
	NotificationTypeCronExecutionFinished = "cron_execution_finished"
)

const sendBuffer = 32

// Notification represents a message sent over WebSocket
type Notification struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	UserID  string      `json:"userID,omitempty"`
}

// Client represents a connected WebSocket client
type Client struct {
	UserID primitive.ObjectID
	Admin  bool
	Conn   *websocket.Conn
	send   chan Notification
}

// Hub maintains the set of active clients and pushes credit events to them.
type Hub struct {
	clients    map[primitive.ObjectID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[primitive.ObjectID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.UserID] = set
			}
			set[client] = struct{}{}
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[client.UserID]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					close(client.send)
				}
				if len(set) == 0 {
					delete(h.clients, client.UserID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// SendToUser queues a notification on every connection of userID. It reports
// whether the user had at least one connection.
func (h *Hub) SendToUser(userID primitive.ObjectID, n Notification) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.clients[userID]
	for c := range set {
		enqueue(c, n)
	}
	return len(set) > 0
}

// SendToAdmins queues a notification on every admin connection.
func (h *Hub) SendToAdmins(n Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for c := range set {
			if c.Admin {
				enqueue(c, n)
			}
		}
	}
}

// enqueue drops the message for a client that is not keeping up.
func enqueue(c *Client, n Notification) {
	select {
	case c.send <- n:
	default:
	}
}

// Connections counts open client connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, set := range h.clients {
		total += len(set)
	}
	return total
}

// IncomeCredited pushes a credited income to its owner.
func (h *Hub) IncomeCredited(income models.Income) {
	n := Notification{
		Type:    NotificationTypeDailyProfitCredited,
		Message: "Daily profit credited",
		Data:    income,
		UserID:  income.UserID.Hex(),
	}
	if income.Type == models.IncomeTypeTeamCommission {
		n.Type = NotificationTypeCommissionCredited
		n.Message = "Team commission credited"
	}
	h.SendToUser(income.UserID, n)
}

// ExecutionFinished pushes the final execution record to connected admins.
func (h *Hub) ExecutionFinished(exec models.CronExecution) {
	h.SendToAdmins(Notification{
		Type:    NotificationTypeCronExecutionFinished,
		Message: "Cron execution " + exec.Status,
		Data:    exec,
	})
}
