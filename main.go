// ./main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/soundpuff-e2e/cmd"
)

// main lets `go run .` behave like the soundpuff-e2e binary.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := cmd.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
