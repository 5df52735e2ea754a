// Package main starts the listen-party coordination service and handles
// termination.
//
// The process is a transport adapter around party lifecycle and playback
// synchronization so media metadata remains owned by the catalog domain.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	partycmd "github.com/soundleaf/soundleaf/internal/cmd/party"
)

func main() {
	cfg, err := partycmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[PARTY] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := partycmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
