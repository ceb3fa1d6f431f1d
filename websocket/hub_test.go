package websocket

import (
	"context"
	"testing"
	"time"
	"wildlife-licensing-backend/db/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func connect(t *testing.T, hub *Hub, buffer int, applications ...string) *Client {
	t.Helper()
	client := &Client{ID: uuid.New(), UserID: uuid.New(), Hub: hub, Send: make(chan WebSocketMessage, buffer)}
	for _, id := range applications {
		client.Subscribe(id)
	}
	before := hub.GetClientCount()
	hub.register <- client
	require.Eventually(t, func() bool { return hub.GetClientCount() == before+1 }, time.Second, time.Millisecond)
	return client
}

func statusApp() *models.Application {
	lodgement := "A000007"
	return &models.Application{
		ID:              uuid.New(),
		LodgementNumber: &lodgement,
		CustomerStatus:  models.CustomerStatusUnderReview,
		SelectedActivities: []models.SelectedActivity{{
			ID:               uuid.New(),
			ProcessingStatus: models.ProcessingWithOfficer,
			LicenceActivity:  &models.LicenceActivity{Name: "Fauna"},
		}},
	}
}

func TestApplicationChangedReachesSubscribersOnly(t *testing.T) {
	hub := runHub(t)
	app := statusApp()
	watcher := connect(t, hub, 4, app.ID.String())
	other := connect(t, hub, 4, uuid.NewString())

	hub.ApplicationChanged(context.Background(), app)

	select {
	case msg := <-watcher.Send:
		assert.Equal(t, MessageTypeApplicationStatus, msg.Type)
		status, ok := msg.Payload.(ApplicationStatus)
		require.True(t, ok)
		assert.Equal(t, "A000007", status.LodgementNumber)
		require.Len(t, status.Activities, 1)
		assert.Equal(t, "Fauna", status.Activities[0].Name)
		assert.Equal(t, models.ProcessingWithOfficer, status.Activities[0].ProcessingStatus)
	default:
		t.Fatal("subscriber received nothing")
	}
	assert.Empty(t, other.Send)
	assert.Len(t, hub.GetSubscribers(app.ID.String()), 1)
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := runHub(t)
	app := statusApp()
	slow := connect(t, hub, 1, app.ID.String())

	hub.ApplicationChanged(context.Background(), app)
	hub.ApplicationChanged(context.Background(), app)

	assert.Zero(t, hub.GetClientCount())
	_, open := <-slow.Send
	assert.True(t, open)
	_, open = <-slow.Send
	assert.False(t, open)
	assert.False(t, hub.deliver(slow, WebSocketMessage{Type: MessageTypeError}))
}

type denyAll struct{}

func (denyAll) CanWatch(ctx context.Context, userID, applicationID uuid.UUID) error {
	return assert.AnError
}

func TestSubscribeMessages(t *testing.T) {
	hub := runHub(t)
	client := connect(t, hub, 4)
	client.handler = NewWsHandler(hub, nil, denyAll{})

	target := uuid.NewString()
	client.handleMessage(WebSocketMessage{Type: MessageTypeSubscribe, ApplicationID: target})
	assert.False(t, client.IsSubscribed(target))
	msg := <-client.Send
	assert.Equal(t, MessageTypeError, msg.Type)

	client.Subscribe(target)
	client.handleMessage(WebSocketMessage{Type: MessageTypeUnsubscribe, ApplicationID: target})
	assert.False(t, client.IsSubscribed(target))

	client.handleMessage(WebSocketMessage{Type: "CHAT_MESSAGE"})
	msg = <-client.Send
	assert.Equal(t, MessageTypeError, msg.Type)
}
