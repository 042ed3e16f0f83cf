// Package sse fans out autosave status events to Server-Sent Events subscribers.
package sse

import (
	"sync"

	"github.com/debemdeboas/draftbox/internal/model"
)

const clientBuffer = 8

type Client struct {
	Msg     chan string
	DraftID model.DraftID
}

func NewClient(draftID model.DraftID) *Client {
	return &Client{
		Msg:     make(chan string, clientBuffer),
		DraftID: draftID,
	}
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.Msg)
}

// Broadcast delivers msg to every subscriber of draftID. Slow subscribers
// miss messages instead of blocking the sender.
func (s *SSEClients) Broadcast(draftID model.DraftID, msg string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.DraftID == draftID {
			select {
			case client.Msg <- msg:
			default:
			}
		}
	}
}

func (s *SSEClients) Count(draftID model.DraftID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for client := range s.clients {
		if client.DraftID == draftID {
			n++
		}
	}
	return n
}
