package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
)

// Server serves a hub on /ws.
type Server struct {
	hub  *Hub
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
}

// Listen starts serving hub on addr. Use ":0" for an ephemeral port.
func Listen(addr string, hub *Hub) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("remote: listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.Handler())

	s := &Server{
		hub:  hub,
		srv:  &http.Server{Handler: mux},
		ln:   ln,
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("remote: serve: %v", err)
		}
	}()
	log.Printf("remote: observer feed listening on %s", ln.Addr())
	return s, nil
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close stops accepting connections, disconnects the hub's clients and
// waits for the server goroutine to exit.
func (s *Server) Close(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.hub.Close()
	<-s.done
	return err
}
