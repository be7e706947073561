package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/authctl"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server"
	"github.com/dmitrijs2005/authkeeper/internal/server/audit"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"golang.org/x/term"
)

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	return pw, err
}

func main() {
	os.Exit(run())
}

func run() int {

	ctx := context.Background()

	cmd, args, ok := authctl.SplitCommand(os.Args[1:])
	if !ok {
		log.Printf("usage: authctl [config flags] <%s> [flags]", strings.Join(authctl.Commands, "|"))
		return 2
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("config error: %v", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("invalid config: %v", err)
		return 1
	}

	store, err := server.OpenStore(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer store.Close()

	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	svc, err := server.NewAuthService(ctx, cfg, store, audit.NewSync(store.Audit(), logger), logger)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}

	if err := authctl.New(os.Stdout, store, svc, readPassword).Run(ctx, cmd, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, authctl.ErrUsage) {
			return 2
		}
		return 1
	}

	return 0
}
