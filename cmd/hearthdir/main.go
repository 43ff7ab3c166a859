package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/decred/slog"

	"hearth/internal/directory"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	log := slog.NewBackend(os.Stderr).Logger("DIR")
	log.SetLevel(slog.LevelInfo)

	srv := directory.NewServer()
	log.Infof("directory listening on %s", *addr)
	if err := http.ListenAndServe(*addr, srv); err != nil {
		log.Errorf("directory: %v", err)
		os.Exit(1)
	}
}
