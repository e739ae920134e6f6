package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Stream audio in chunks to simulate real-time streaming
// At 8kHz 16-bit mono = 16000 bytes/second
// 100ms chunks = 1600 bytes
const chunkSize = 1600
const chunkIntervalMs = 100

type serverMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

func main() {
	audioFile := flag.String("audio", "testdata/sample-8khz.wav", "Path to WAV file (8kHz 16-bit mono)")
	serverAddr := flag.String("server", "ws://localhost:8080/api/voice/session", "Voice session websocket URL")
	tradeType := flag.String("trade", "GENERAL", "Trade hint")
	timeout := flag.Duration("timeout", 90*time.Second, "Time to wait for the extraction result")
	flag.Parse()

	// Open audio file
	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	// Read and validate WAV header
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}

	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}

	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])

	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)

	if audioFormat != 1 { // PCM
		log.Fatal("Only PCM format supported")
	}
	if sampleRate != 8000 {
		log.Printf("Warning: Sample rate is %d Hz, expected 8000 Hz", sampleRate)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*serverAddr, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", *serverAddr)

	messages := make(chan serverMessage, 32)
	go func() {
		defer close(messages)
		for {
			var msg serverMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			messages <- msg
		}
	}()

	if err := conn.WriteJSON(map[string]any{"type": "start", "tradeType": *tradeType}); err != nil {
		log.Fatalf("Failed to start voice quote: %v", err)
	}

	deadline := time.After(*timeout)
	streaming := false
	for {
		select {
		case <-deadline:
			log.Fatal("Timed out waiting for extraction result")
		case msg, ok := <-messages:
			if !ok {
				log.Fatal("Connection closed by server")
			}
			switch msg.Type {
			case "permission_request":
				// Audio comes from a file, so access is always granted
				conn.WriteJSON(map[string]any{"type": "permission", "granted": true})
			case "recognition":
				log.Printf("Server expects client-side recognition (%s); use a server-side engine such as google", msg.Data)
			case "state":
				var state struct {
					Phase      string `json:"phase"`
					Transcript string `json:"transcript"`
					Error      string `json:"error"`
				}
				json.Unmarshal(msg.Data, &state)
				log.Printf("Phase %s transcript=%q", state.Phase, state.Transcript)
				switch state.Phase {
				case "recording":
					if !streaming {
						streaming = true
						go stream(conn, f)
					}
				case "error":
					log.Fatalf("Voice quote failed: %s", state.Error)
				}
			case "result":
				var pretty map[string]any
				json.Unmarshal(msg.Data, &pretty)
				out, _ := json.MarshalIndent(pretty, "", "  ")
				log.Printf("Extraction result:\n%s", out)
				return
			case "error":
				log.Printf("Server error: %s", msg.Data)
			}
		}
	}
}

// stream sends the remaining WAV data in real time, then asks the server to stop.
func stream(conn *websocket.Conn, f io.Reader) {
	audioChunk := make([]byte, chunkSize)
	var totalBytes int64
	var chunkNum int
	startTime := time.Now()

	for {
		n, err := f.Read(audioChunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read audio: %v", err)
		}

		chunkNum++
		totalBytes += int64(n)

		if err := conn.WriteMessage(websocket.BinaryMessage, audioChunk[:n]); err != nil {
			log.Fatalf("Failed to send audio: %v", err)
		}

		if chunkNum%10 == 0 {
			log.Printf("Sent chunk %d (%d bytes total)", chunkNum, totalBytes)
		}

		// Simulate real-time streaming
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}

	log.Printf("Finished streaming: %d chunks, %d bytes in %v", chunkNum, totalBytes, time.Since(startTime))
	log.Println("Stopping recording, waiting for extraction...")
	if err := conn.WriteJSON(map[string]any{"type": "stop"}); err != nil {
		log.Fatalf("Failed to stop recording: %v", err)
	}
}
