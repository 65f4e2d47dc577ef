package handlers

import "testing"

func TestHubDropsSlowConsumer(t *testing.T) {
	hub := NewWebSocketHub()
	const address = "0x00000000000000000000000000000000000000c1"

	slow := &Client{Address: address, send: make(chan *Message)}
	hub.clients[address] = map[*Client]struct{}{slow: {}}

	hub.broadcastMessage(&Message{Type: "BALANCE_UPDATE", Address: address})

	if _, ok := hub.clients[address]; ok {
		t.Error("Expected the address to be removed once its last client was dropped")
	}
	if _, open := <-slow.send; open {
		t.Error("Expected the slow client's channel to be closed")
	}
}

func TestHubKeepsAddressWithLiveClients(t *testing.T) {
	hub := NewWebSocketHub()
	const address = "0x00000000000000000000000000000000000000c2"

	slow := &Client{Address: address, send: make(chan *Message)}
	live := &Client{Address: address, send: make(chan *Message, 1)}
	hub.clients[address] = map[*Client]struct{}{slow: {}, live: {}}

	hub.broadcastMessage(&Message{Type: "BALANCE_UPDATE", Address: address})

	set, ok := hub.clients[address]
	if !ok || len(set) != 1 {
		t.Fatalf("Expected 1 remaining client, got %d", len(set))
	}
	if _, ok := set[live]; !ok {
		t.Error("Expected the live client to stay subscribed")
	}
	if msg := <-live.send; msg.Type != "BALANCE_UPDATE" {
		t.Errorf("Expected BALANCE_UPDATE, got %s", msg.Type)
	}
}
