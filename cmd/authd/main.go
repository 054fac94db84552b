package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	authdcmd "github.com/pistolinkr/webmuseum.world-sub000/internal/cmd/authd"
)

func main() {
	cfg, err := authdcmd.ParseConfig(flag.CommandLine, os.Args[1:], func(key string) (string, bool) {
		value, ok := os.LookupEnv(key)
		return value, ok
	})
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[AUTHD] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := authdcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
