package websocket

import (
	"context"
	"sync"
	"time"
	"wildlife-licensing-backend/db/models"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeApplicationStatus MessageType = "APPLICATION_STATUS"
	MessageTypeSubscribe         MessageType = "SUBSCRIBE"
	MessageTypeUnsubscribe       MessageType = "UNSUBSCRIBE"
	MessageTypeError             MessageType = "ERROR"
)

type WebSocketMessage struct {
	Type          MessageType `json:"type"`
	Payload       interface{} `json:"payload"`
	Timestamp     time.Time   `json:"timestamp"`
	ApplicationID string      `json:"applicationId,omitempty"`
}

type ActivityStatus struct {
	ID               uuid.UUID               `json:"id"`
	Name             string                  `json:"name"`
	ProcessingStatus models.ProcessingStatus `json:"processingStatus"`
	ActivityStatus   models.ActivityStatus   `json:"activityStatus"`
}

type ApplicationStatus struct {
	ApplicationID   uuid.UUID             `json:"applicationId"`
	LodgementNumber string                `json:"lodgementNumber,omitempty"`
	CustomerStatus  models.CustomerStatus `json:"customerStatus"`
	Activities      []ActivityStatus      `json:"activities"`
}

type Client struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Conn         *websocket.Conn
	Hub          *Hub
	Send         chan WebSocketMessage
	Applications map[string]bool
	mu           sync.RWMutex
	handler      *WsHandler
}

// Hub fans application status changes out to subscribed clients.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	now        func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		now:        time.Now,
	}
}

// Run serves registrations until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.drop(client)
		}
	}
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
}

// ApplicationChanged publishes the new statuses of a committed application.
func (h *Hub) ApplicationChanged(ctx context.Context, app *models.Application) {
	status := ApplicationStatus{
		ApplicationID:  app.ID,
		CustomerStatus: app.CustomerStatus,
	}
	if app.LodgementNumber != nil {
		status.LodgementNumber = *app.LodgementNumber
	}
	for i := range app.SelectedActivities {
		activity := &app.SelectedActivities[i]
		status.Activities = append(status.Activities, ActivityStatus{
			ID:               activity.ID,
			Name:             activity.Name(),
			ProcessingStatus: activity.ProcessingStatus,
			ActivityStatus:   activity.ActivityStatus,
		})
	}
	h.BroadcastToApplication(app.ID.String(), WebSocketMessage{
		Type:          MessageTypeApplicationStatus,
		Payload:       status,
		Timestamp:     h.now(),
		ApplicationID: app.ID.String(),
	})
}

// BroadcastToApplication sends a message to clients subscribed to the
// application. Clients whose buffer is full are disconnected.
func (h *Hub) BroadcastToApplication(applicationID string, message WebSocketMessage) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients {
		if !client.IsSubscribed(applicationID) {
			continue
		}
		select {
		case client.Send <- message:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.drop(client)
	}
}

// deliver queues a message for a registered client without blocking.
func (h *Hub) deliver(client *Client, message WebSocketMessage) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return false
	}
	select {
	case client.Send <- message:
		return true
	default:
		return false
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetSubscribers returns all clients subscribed to an application
func (h *Hub) GetSubscribers(applicationID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var subscribers []*Client
	for client := range h.clients {
		if client.IsSubscribed(applicationID) {
			subscribers = append(subscribers, client)
		}
	}
	return subscribers
}

func (c *Client) Subscribe(applicationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Applications == nil {
		c.Applications = make(map[string]bool)
	}
	c.Applications[applicationID] = true
}

func (c *Client) Unsubscribe(applicationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Applications, applicationID)
}

func (c *Client) IsSubscribed(applicationID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Applications[applicationID]
}
