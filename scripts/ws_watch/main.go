// ws_watch connects to a notify-server as a given identity and prints every
// routed notification. Stdin lines are published to the identity's role room.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fuelport/notify-server/internal/proto"
	"github.com/fuelport/notify-server/pkg/client"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_watch: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "user id to announce")
	role := flag.String("role", "user", "user type (admin, fuelPump, deliveryBoy, user)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Config{
		URL:      *addr,
		UserID:   *user,
		UserType: *role,
		OnStateChange: func(s client.State) {
			fmt.Printf("* %s\n", s)
		},
		OnError: func(code, msg string) {
			fmt.Printf("* server error %s: %s\n", code, msg)
		},
	})

	defer c.Close()
	if err := c.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	unsubscribes := []func(){
		c.Subscribe("joined", func(data json.RawMessage) {
			var joined proto.JoinedData
			if err := json.Unmarshal(data, &joined); err == nil {
				fmt.Printf("* joined rooms %v\n", joined.Rooms)
			}
		}),
		c.Subscribe("fuelPriceUpdate", func(data json.RawMessage) {
			var update proto.FuelPriceUpdate
			if err := json.Unmarshal(data, &update); err == nil {
				fmt.Printf("[price] %s = %.2f\n", update.FuelType, update.Price)
			}
		}),
		c.Subscribe("orderUpdate", func(data json.RawMessage) {
			var update proto.OrderUpdate
			if err := json.Unmarshal(data, &update); err == nil {
				fmt.Printf("[order %d] %s\n", update.OrderID, update.Status)
			}
		}),
		c.Subscribe("deliveryAssigned", func(data json.RawMessage) {
			var assigned proto.DeliveryAssigned
			if err := json.Unmarshal(data, &assigned); err == nil {
				fmt.Printf("[delivery] order %d -> %s (%s)\n", assigned.OrderID, assigned.DeliveryBoyID, assigned.Address)
			}
		}),
	}
	defer func() {
		for _, unsub := range unsubscribes {
			unsub()
		}
	}()

	fmt.Printf("Watching %s as %s (%s). Type messages to publish to your role room. Ctrl+C to exit.\n", *addr, *user, *role)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if !c.Publish("note", map[string]string{"text": text}) {
				fmt.Println("* not connected, message dropped")
			}
		}
	}
}
