// Command serve hosts the live training dashboard: a WebSocket endpoint
// broadcasting trainer.Progress frames and, if present, a static frontend.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"slidenet/internal/monitor"
)

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	frontendDir := flag.String("frontend-dir", "frontend/build", "directory containing the dashboard's static build")
	flag.Parse()

	hub := monitor.NewHub()
	handler := monitor.NewHandler(hub)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/ws", handler)

	if _, err := os.Stat(*frontendDir); err == nil {
		log.Printf("serve: serving frontend from %s", *frontendDir)
		mux.Handle("/", http.FileServer(http.Dir(*frontendDir)))
	}

	log.Printf("serve: listening on %s", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatal(err)
	}
}
