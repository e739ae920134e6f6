// Extraction Viewer - live view of voice quote extractions
// Consumes completed and failed extraction events from Kafka and pushes them to the browser over WebSocket
package main

import (
	"context"
	"embed"
	"encoding/json"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
)

//go:embed static/*
var staticFiles embed.FS

// ExtractionEvent is the subset of a completed or failed extraction event the viewer renders
type ExtractionEvent struct {
	EventType  string          `json:"eventType"`
	AttemptID  string          `json:"attemptId"`
	SessionID  string          `json:"sessionId,omitempty"`
	Source     string          `json:"source"`
	TradeHint  string          `json:"tradeHint"`
	Result     json.RawMessage `json:"result,omitempty"`
	ErrorKind  string          `json:"errorKind,omitempty"`
	Error      string          `json:"error,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	DurationMs int64           `json:"durationMs"`
	Timestamp  int64           `json:"timestamp"`
}

// backlogSize is how many recent events a newly connected browser receives
const backlogSize = 50

// Hub fans events out to browsers and keeps a short backlog plus running tallies
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	backlog  []ExtractionEvent
	byTrade  map[string]int
	byError  map[string]int
	received int
}

func newHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		byTrade: make(map[string]int),
		byError: make(map[string]int),
	}
}

// add registers a browser and replays the backlog to it
func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.backlog {
		if err := conn.WriteJSON(e); err != nil {
			conn.Close()
			return
		}
	}
	h.clients[conn] = struct{}{}
	log.Printf("Client connected. Total: %d", len(h.clients))
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		log.Printf("Client disconnected. Total: %d", len(h.clients))
	}
}

func (h *Hub) publish(e ExtractionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.received++
	if e.ErrorKind != "" {
		h.byError[e.ErrorKind]++
	} else {
		h.byTrade[tradeOf(e)]++
	}
	h.backlog = append(h.backlog, e)
	if len(h.backlog) > backlogSize {
		h.backlog = h.backlog[len(h.backlog)-backlogSize:]
	}

	for conn := range h.clients {
		if err := conn.WriteJSON(e); err != nil {
			log.Printf("Write error: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) stats(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	body := map[string]any{
		"received":  h.received,
		"completed": h.byTrade,
		"failed":    h.byError,
		"clients":   len(h.clients),
	}
	out, err := json.Marshal(body)
	h.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
}

func wsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}
		hub.add(conn)

		// Browsers never send; reading only detects the disconnect
		go func() {
			defer hub.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func tradeOf(e ExtractionEvent) string {
	var r struct {
		TradeType string `json:"tradeType"`
	}
	if err := json.Unmarshal(e.Result, &r); err != nil || r.TradeType == "" {
		return "UNKNOWN"
	}
	return r.TradeType
}

func describe(e ExtractionEvent) string {
	if e.ErrorKind != "" {
		return e.ErrorKind + ": " + e.Error
	}
	var r struct {
		JobTitle  string `json:"jobTitle"`
		TradeType string `json:"tradeType"`
	}
	json.Unmarshal(e.Result, &r)
	return r.TradeType + " " + r.JobTitle
}

func consumeKafka(ctx context.Context, hub *Hub, brokers, topic string) {
	// Use partition reader without consumer group (works better through port-forward)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   strings.Split(brokers, ","),
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	reader.SetOffsetAt(ctx, time.Now().Add(-1*time.Hour)) // Last hour of events

	log.Printf("Consuming from Kafka topic: %s partition 0 (last hour)", topic)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Kafka read error on %s: %v", topic, err)
			time.Sleep(time.Second)
			continue
		}

		var event ExtractionEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("JSON unmarshal error: %v", err)
			continue
		}

		log.Printf("Received %s: %s (attempt: %s)", event.EventType, describe(event), event.AttemptID)
		hub.publish(event)
	}
}

func main() {
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicCompleted := flag.String("topic-completed", "tradietalk.extraction.completed.v1", "Completed extraction topic")
	topicFailed := flag.String("topic-failed", "tradietalk.extraction.failed.v1", "Failed extraction topic")
	flag.Parse()

	hub := newHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go consumeKafka(ctx, hub, *brokers, *topicCompleted)
	go consumeKafka(ctx, hub, *brokers, *topicFailed)

	staticFS, _ := fs.Sub(staticFiles, "static")
	http.Handle("/", http.FileServer(http.FS(staticFS)))
	http.HandleFunc("/ws", wsHandler(hub))
	http.HandleFunc("/stats", hub.stats)

	log.Printf("Extraction Viewer starting on http://localhost:%s", *port)
	log.Printf("   Kafka brokers: %s", *brokers)
	log.Printf("   Topics: %s, %s", *topicCompleted, *topicFailed)

	if err := http.ListenAndServe(":"+*port, nil); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
