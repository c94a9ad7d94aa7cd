package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/projectdiscovery/gologger"

	"github.com/edgediscovery/cleanip/internal/runner"
)

func main() {
	options := runner.ParseOptions()
	cleanipRunner, err := runner.NewRunner(options)
	if err != nil {
		gologger.Fatal().Msgf("Could not create runner: %s\n", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup close handler
	go func() {
		<-c
		fmt.Println("\r- Ctrl+C pressed in Terminal, Exiting...")
		cancel()
	}()

	defer cleanipRunner.Close()

	if err := cleanipRunner.Run(ctx); err != nil {
		gologger.Fatal().Msgf("Could not run cleanip: %s\n", err)
	}
}
