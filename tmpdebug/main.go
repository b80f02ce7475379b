package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fuelport/notify-server/internal/config"
	"github.com/fuelport/notify-server/internal/core"
	"github.com/fuelport/notify-server/internal/proto"
	transporthttp "github.com/fuelport/notify-server/internal/transport/http"
)

func main() {
	hub := core.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	cfg := config.Default()
	logger := zerolog.Nop()
	server := transporthttp.NewServer(hub, nil, cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	defer ts.Close()

	addr := strings.TrimPrefix(ts.URL, "http://")
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	req := "GET /ws HTTP/1.1\r\nHost: " + addr + "\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\nSec-WebSocket-Version: 13\r\n\r\n"
	io.WriteString(conn, req)

	br := bufio.NewReader(conn)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			panic(err)
		}
		fmt.Printf("HDR: %q\n", line)
		if line == "\r\n" {
			break
		}
	}

	payload, _ := json.Marshal(proto.JoinData{UserID: "D1", UserType: "deliveryBoy"})
	inbound, _ := json.Marshal(proto.Inbound{Type: proto.InboundTypeJoin, Data: payload})
	frame := []byte{0x81}
	frame = append(frame, byte(0x80|len(inbound)))
	mask := []byte{0, 0, 0, 0}
	frame = append(frame, mask...)
	frame = append(frame, inbound...)
	conn.Write(frame)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := br.Read(buf)
	fmt.Println("read err:", err)
	fmt.Println(hex.Dump(buf[:n]))
}
