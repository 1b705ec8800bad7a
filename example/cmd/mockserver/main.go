// Standalone mock API server for trying the CLI without API keys.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/marquee preview -c example/marquee.yaml
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jpalmerr/marquee/example/mockapi"
)

const addr = ":9999"

func main() {
	fmt.Printf("Mock CTA and weather.gov APIs on %s\n", mockapi.BaseURL(addr))
	fmt.Println("Every tenth bus request fails with 503")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	if err := mockapi.ListenAndServe(addr); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
