// Command clicknode-inspect dials a running node's observer websocket
// and logs every mirrored envelope as received, in the spirit of the
// teacher's small standalone dev tools (cmd/ami-dump, cmd/ami-events-logger).
package main

import (
	"context"
	"flag"
	"log"

	"github.com/coder/websocket"
)

func main() {
	addr := flag.String("addr", "ws://localhost:9090/observe", "observer websocket URL")
	flag.Parse()

	ctx := context.Background()
	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		log.Fatalf("clicknode-inspect: dial %s: %v", *addr, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			log.Printf("clicknode-inspect: connection closed: %v", err)
			return
		}
		log.Printf("%s", data)
	}
}
