package main

import (
	"context"
	"fmt"
	"os"

	"github.com/island-mesh/island/internal/cli"
)

func main() {
	if err := cli.ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
