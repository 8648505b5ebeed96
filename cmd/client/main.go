// Terminal chat client. Connects to a gateway with a bearer token, reads
// "<room-id> <message>" lines from stdin and prints incoming events.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type outFrame struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId,omitempty"`
	Content string `json:"content,omitempty"`
}

type inFrame struct {
	Type     string    `json:"type"`
	RoomID   string    `json:"roomId"`
	SenderID string    `json:"senderId"`
	Content  string    `json:"content"`
	Time     time.Time `json:"time"`
	Reason   string    `json:"reason"`
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/api/ws/chat", "gateway websocket URL")
	token := flag.String("token", "", "bearer access token")
	flag.Parse()

	if *token == "" {
		log.Fatal("missing -token")
	}

	u, err := url.Parse(*serverURL)
	if err != nil {
		log.Fatalf("bad url: %v", err)
	}
	q := u.Query()
	q.Set("access_token", *token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	go readLoop(conn)

	fmt.Println("connected; type: <room-id> <message>")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		roomID, content, ok := strings.Cut(line, " ")
		if !ok {
			fmt.Println("usage: <room-id> <message>")
			continue
		}
		frame := outFrame{Type: "sendMessage", RoomID: roomID, Content: content}
		if err := conn.WriteJSON(frame); err != nil {
			log.Fatalf("write: %v", err)
		}
	}
}

func readLoop(conn *websocket.Conn) {
	for {
		var f inFrame
		if err := conn.ReadJSON(&f); err != nil {
			log.Printf("connection closed: %v", err)
			os.Exit(0)
		}
		switch f.Type {
		case "receiveMessage":
			fmt.Printf("[%s] %s: %s\n", f.RoomID, f.SenderID, f.Content)
		case "receiveError":
			fmt.Printf("error: %s\n", f.Reason)
		case "connected":
			fmt.Println("server acknowledged connection")
		}
	}
}
