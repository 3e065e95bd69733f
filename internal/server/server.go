package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/enerflux/der1547eval/internal/config"
	"github.com/enerflux/der1547eval/internal/core/domain"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
)

// RunStore is the read side of the run registry the API serves.
type RunStore interface {
	Get(id uuid.UUID) (domain.Run, bool)
	List() []domain.Run
}

type Server struct {
	port    uint
	httpLog bool
	store   RunStore
}

func NewServer(cfg config.Config, store RunStore) *http.Server {
	NewServer := &Server{
		port:    cfg.Port,
		httpLog: cfg.HttpLog,
		store:   store,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
