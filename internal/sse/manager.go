package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/mediaqc-server/internal/id"
)

const (
	eventBuffer      = 1000
	clientBuffer     = 100
	defaultHeartbeat = 30 * time.Second
)

// Client is one connected stream.
type Client struct {
	ID          string
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
}

// Manager fans events out to every connected client. Slow clients drop
// events rather than stall the broadcast loop.
type Manager struct {
	logger            *slog.Logger
	heartbeatInterval time.Duration
	onClientCount     func(int)

	mu      sync.RWMutex
	clients map[string]*Client

	events    chan Event
	closeMu   sync.RWMutex
	closed    bool
	loopDone  chan struct{}
	startOnce sync.Once
}

// NewManager creates a manager. Call Start to begin broadcasting.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:            logger,
		heartbeatInterval: defaultHeartbeat,
		onClientCount:     func(int) {},
		clients:           make(map[string]*Client),
		events:            make(chan Event, eventBuffer),
		loopDone:          make(chan struct{}),
	}
}

// OnClientCount registers a callback invoked with the client count after
// every connect and disconnect.
func (m *Manager) OnClientCount(fn func(int)) {
	m.onClientCount = fn
}

// Start runs the broadcast loop until ctx is done or Shutdown is called.
// Call it once, in its own goroutine.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		defer close(m.loopDone)
		defer m.closeAllClients()

		ticker := time.NewTicker(m.heartbeatInterval)
		defer ticker.Stop()

		m.logger.Info("event stream manager starting")
		for {
			select {
			case event, ok := <-m.events:
				if !ok {
					return
				}
				m.broadcast(event)
			case <-ticker.C:
				m.broadcast(NewHeartbeatEvent())
			case <-ctx.Done():
				return
			}
		}
	})
}

// Shutdown stops accepting events, lets the loop flush what is queued and
// disconnects every client. It returns ctx's error if the loop does not
// finish in time.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closeMu.Lock()
	if !m.closed {
		m.closed = true
		close(m.events)
	}
	m.closeMu.Unlock()

	select {
	case <-m.loopDone:
		m.logger.Info("event stream manager stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("event stream drain timed out")
		return ctx.Err()
	}
}

// Emit queues an event. It never blocks: events are dropped when the queue
// is full or the manager is shut down.
func (m *Manager) Emit(event Event) {
	m.closeMu.RLock()
	defer m.closeMu.RUnlock()

	if m.closed {
		return
	}
	select {
	case m.events <- event:
	default:
		m.logger.Error("event queue full, dropping event", slog.String("event_type", string(event.Type)))
	}
}

// Connect registers a new client.
func (m *Manager) Connect() (*Client, error) {
	clientID, err := id.Generate(id.PrefixClient)
	if err != nil {
		return nil, err
	}

	client := &Client{
		ID:          clientID,
		ConnectedAt: time.Now(),
		EventChan:   make(chan Event, clientBuffer),
		Done:        make(chan struct{}),
	}

	m.mu.Lock()
	m.clients[client.ID] = client
	total := len(m.clients)
	m.mu.Unlock()

	m.onClientCount(total)
	m.logger.Info("stream client connected", slog.String("client_id", clientID), slog.Int("total_clients", total))
	return client, nil
}

// Disconnect removes a client and closes its channels.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	client, ok := m.clients[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, clientID)
	total := len(m.clients)
	close(client.Done)
	close(client.EventChan)
	m.mu.Unlock()

	m.onClientCount(total)
	m.logger.Info("stream client disconnected",
		slog.String("client_id", clientID),
		slog.Duration("duration", time.Since(client.ConnectedAt)),
		slog.Int("total_clients", total))
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) broadcast(event Event) {
	var delivered, dropped int

	m.mu.RLock()
	for _, client := range m.clients {
		select {
		case client.EventChan <- event:
			delivered++
		default:
			dropped++
		}
	}
	m.mu.RUnlock()

	if event.Type != EventHeartbeat {
		m.logger.Debug("event broadcast",
			slog.String("event_type", string(event.Type)),
			slog.Int("delivered", delivered),
			slog.Int("dropped", dropped))
	}
}

func (m *Manager) closeAllClients() {
	m.mu.Lock()
	for clientID, client := range m.clients {
		close(client.Done)
		close(client.EventChan)
		delete(m.clients, clientID)
	}
	m.mu.Unlock()

	m.onClientCount(0)
}
