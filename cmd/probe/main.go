// Command probe is a manual smoke test: it connects to a running relay,
// sends one text turn and prints every frame that comes back for a while.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "relay websocket URL")
	text := flag.String("text", "What does the knowledge base say about per diem rates?", "user message to send")
	wait := flag.Duration("wait", 15*time.Second, "how long to wait for frames")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	item := map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type": "message",
			"role": "user",
			"content": []map[string]any{
				{"type": "input_text", "text": *text},
			},
		},
	}
	if err := writeFrame(conn, item); err != nil {
		log.Fatalf("send item: %v", err)
	}
	if err := writeFrame(conn, map[string]any{"type": "response.create"}); err != nil {
		log.Fatalf("send response.create: %v", err)
	}
	log.Printf("sent: %q", *text)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Printf("read: %v", err)
				return
			}
			var frame map[string]any
			if err := sonic.Unmarshal(data, &frame); err != nil {
				log.Printf("undecodable frame: %v", err)
				continue
			}
			t, _ := frame["type"].(string)
			switch t {
			case "response.audio.delta":
				log.Printf("<- %s (%d bytes)", t, len(data))
			case "extension.middle_tier_tool_response":
				log.Printf("<- %s tool=%v result=%v", t, frame["tool_name"], frame["tool_result"])
			default:
				log.Printf("<- %s", t)
			}
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	select {
	case <-done:
	case <-interrupt:
	case <-time.After(*wait):
	}
	log.Println("done")
}

func writeFrame(conn *websocket.Conn, frame map[string]any) error {
	data, err := sonic.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
