package fixintake

import (
	"bytes"
	"fmt"
	"os"

	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/log/file"
	"go.uber.org/zap"
)

// Server runs a FIX acceptor in front of an Intake.
type Server struct {
	app      *Intake
	acceptor *quickfix.Acceptor
}

func NewServer(app *Intake) *Server {
	return &Server{app: app}
}

func (s *Server) Start(configFile string) error {
	raw, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("error reading %v: %w", configFile, err)
	}
	settings, err := quickfix.ParseSettings(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("error parsing %v: %w", configFile, err)
	}

	logFactory, err := file.NewLogFactory(settings)
	if err != nil {
		return fmt.Errorf("unable to create log factory: %w", err)
	}
	acceptor, err := quickfix.NewAcceptor(s.app, quickfix.NewMemoryStoreFactory(), settings, logFactory)
	if err != nil {
		return fmt.Errorf("unable to create acceptor: %w", err)
	}
	if err := acceptor.Start(); err != nil {
		return fmt.Errorf("unable to start FIX acceptor: %w", err)
	}
	s.acceptor = acceptor
	zap.S().Infof("fix acceptor started from %s", configFile)
	return nil
}

func (s *Server) Stop() {
	if s.acceptor != nil {
		s.acceptor.Stop()
	}
}
