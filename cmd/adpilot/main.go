package main

import (
	"context"
	"os"

	"github.com/adpilot-ai/adpilot/internal/cli"
)

func main() {
	cli.Run(context.Background(), os.Args[1:])
}
