// Command wsdemo wires the wscore handler core into a runnable HTTP
// server: CLI/env/TOML configuration (internal/wsconfig), zerolog logging
// (internal/wslog), and a CSV metrics ledger (internal/wsmetrics), serving
// one echo handler on /echo. It plays the role the teacher repo's main.go
// and autobahn/echo_server.go play, generalized to the Descriptor-based
// handler interface.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tessera-io/wscore/internal/wsconfig"
	"github.com/tessera-io/wscore/internal/wslog"
	"github.com/tessera-io/wscore/internal/wsmetrics"
	"github.com/tessera-io/wscore/wscore"
)

const defaultConfigFile = "wscore.toml"

func main() {
	cmd := &cli.Command{
		Name:  "wsdemo",
		Usage: "demo WebSocket echo server built on wscore",
		Flags: wsconfig.Flags(wsconfig.ConfigFilePath(defaultConfigFile)),
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "wsdemo: %v\n", err)
		os.Exit(1)
	}
}

func run(_ context.Context, cmd *cli.Command) error {
	logger := wslog.New(os.Stderr, cmd.Bool("pretty-log"))
	metrics := &wsmetrics.Recorder{Log: logger}

	registry := wsconfig.NewRegistry()
	if err := registry.Bind(wsconfig.Directive{
		Path:         "/echo",
		PayloadLimit: uint64(cmd.Int("payload-limit")),
		Version:      cmd.String("ws-version"),
		Descriptor:   newEchoDescriptor(),
	}); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		directive, ok := registry.Acquire(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}
		defer registry.Release(r.URL.Path)

		s, err := wscore.Accept(w, r, directive.Descriptor, wscore.Options{
			Version:      directive.Version,
			PayloadLimit: directive.PayloadLimit,
			Logger:       logger,
			Metrics:      metrics,
		})
		if err != nil {
			logger.Error("upgrade_failed", err, map[string]any{"path": r.URL.Path})
			if !errors.Is(err, wscore.ErrHandlerRejected) {
				http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			}
			return
		}

		s.Serve()
	})

	addr := cmd.String("listen-addr")
	logger.Event("listening", map[string]any{"addr": addr})
	return http.ListenAndServe(addr, mux)
}
