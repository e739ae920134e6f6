package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"time"
)

func main() {
	serverAddr := flag.String("server", "http://localhost:8080", "Service base URL")
	voiceText := flag.String("text", "I need a quote for a 6 by 4 meter concrete slab for Sarah Johnson's backyard in Melbourne", "Voice transcript to extract")
	tradeType := flag.String("trade", "GENERAL", "Trade hint")
	flag.Parse()

	body, err := json.Marshal(map[string]string{
		"voiceText": *voiceText,
		"tradeType": *tradeType,
	})
	if err != nil {
		log.Fatalf("failed to encode request: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *serverAddr+"/api/voice/process", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("Sending transcript (%d chars, trade=%s)", len(*voiceText), *tradeType)
	start := time.Now()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("failed to read response: %v", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		pretty.Write(raw)
	}
	log.Printf("Status %d in %v:\n%s", resp.StatusCode, time.Since(start), pretty.String())
}
