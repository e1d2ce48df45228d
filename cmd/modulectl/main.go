// Command modulectl operates the console's module registry over HTTP.
//
// Usage:
//
//	modulectl status
//	modulectl rediscover
//	modulectl export inventory -o inventory.json
//	modulectl export inventory --archive -o inventory.tar.zst
//	modulectl import inventory.tar.zst --mode replaceExisting
//	modulectl activate inventory
//	modulectl remove inventory --drop-tables --confirm inventory
//
// The server address comes from --server or MODULECTL_SERVER.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		for _, v := range apiErr.Violations() {
			fmt.Fprintf(os.Stderr, "  - [%s] %s: %s\n", v.Kind, v.Subject, v.Message)
		}
	}
	stop()
	os.Exit(1)
}
