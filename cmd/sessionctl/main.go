// Command sessionctl inspects and repairs sessions in a sessioncas store.
//
//	sessionctl --config sessionctl.toml get <id>
//	sessionctl unlock <id> --lock-id 7
//	sessionctl rm <id> --lock-id 7
//	sessionctl touch <id>
//	sessionctl seed <id> --timeout 20
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{open: openStore}
	if err := a.execute(ctx, newRootCommand(a)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
