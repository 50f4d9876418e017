package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeCreateRoom   = 101
	MsgTypeJoinRoom     = 102
	MsgTypeStartGame    = 103
	MsgTypeSubmitAction = 104
	MsgTypeNextPhase    = 105
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	uid := flag.String("uid", "demo-user", "caller identity")
	name := flag.String("name", "Demo", "display name")
	addr := flag.String("addr", "localhost:8080", "server address")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws", RawQuery: "uid=" + *uid}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[4:]
			log.Printf("<- RECV (ID: %d): %s", msgID, string(data))
		}
	}()

	log.Println("Sending Create Room request...")
	if err := send(c, MsgTypeCreateRoom, map[string]string{"user_name": *name}); err != nil {
		log.Println("Write error:", err)
		return
	}

	log.Println("Commands: join <room>, start <room>, next <room>, vote <room> <target>, attack|divine|guard <room> <target>")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(text)
			if len(fields) == 0 {
				continue
			}

			var err error
			switch fields[0] {
			case "join":
				if len(fields) < 2 {
					continue
				}
				err = send(c, MsgTypeJoinRoom, map[string]string{"room_id": fields[1], "user_name": *name})
			case "start":
				if len(fields) < 2 {
					continue
				}
				err = send(c, MsgTypeStartGame, map[string]string{"room_id": fields[1]})
			case "next":
				if len(fields) < 2 {
					continue
				}
				err = send(c, MsgTypeNextPhase, map[string]string{"room_id": fields[1]})
			case "vote", "attack", "divine", "guard":
				if len(fields) < 3 {
					continue
				}
				err = send(c, MsgTypeSubmitAction, map[string]string{
					"room_id":     fields[1],
					"action_type": strings.ToUpper(fields[0]),
					"target_id":   fields[2],
				})
			default:
				log.Printf("Unknown command: %s", fields[0])
				continue
			}
			if err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %s", fields[0])
		}
	}
}
