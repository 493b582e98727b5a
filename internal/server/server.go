// Package server is the web shell of cardreader: a JSON API for scanning
// cards, reviewing the extracted contact and managing the card store.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"cardreader/internal/completion"
	"cardreader/internal/extract"
	"cardreader/internal/logger"
	"cardreader/internal/ocr"
	"cardreader/internal/preprocess"
	"cardreader/internal/session"
	"cardreader/internal/sheets"
	"cardreader/internal/store"
	"cardreader/pkg/models"
)

// Pusher appends contacts to a spreadsheet; *sheets.Service implements it.
type Pusher interface {
	Push(ctx context.Context, sheetName string, contacts []models.SavedContact) (sheets.PushResult, error)
}

// Deps are the collaborators the handlers use. Completer and Pusher are
// optional.
type Deps struct {
	OCR          ocr.OCRService
	Preprocessor *preprocess.Preprocessor
	Extractor    *extract.Extractor
	Store        *store.Store
	Sessions     *session.Manager
	Completer    completion.Completer
	Pusher       Pusher
	SheetName    string
}

// Options holds the HTTP server settings.
type Options struct {
	// Addr is the TCP address the server listens on, e.g. ":8000".
	Addr string
	// ReadTimeout is the maximum duration for reading the entire request, including the body.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration
	// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration
	// ScanTimeout bounds OCR and completion for one uploaded card.
	ScanTimeout time.Duration
}

// DefaultOptions returns the options used by `cardreader serve`.
func DefaultOptions(addr string) Options {
	return Options{
		Addr:         addr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
		ScanTimeout:  90 * time.Second,
	}
}

// Server wires the handlers to a router.
type Server struct {
	deps Deps
	opts Options
	log  zerolog.Logger
}

// New creates a Server.
func New(deps Deps, opts Options) *Server {
	if deps.Sessions == nil {
		deps.Sessions = session.NewManager(0)
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New()
	}
	if deps.Preprocessor == nil {
		deps.Preprocessor = preprocess.New(false)
	}
	if opts.ScanTimeout == 0 {
		opts.ScanTimeout = DefaultOptions("").ScanTimeout
	}
	return &Server{
		deps: deps,
		opts: opts,
		log:  logger.WithComponent("server"),
	}
}

// Router returns the API routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogger)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/cards", s.withSession(s.scanCard)).Methods(http.MethodPost)

	api.HandleFunc("/session", s.withSession(s.getSession)).Methods(http.MethodGet)
	api.HandleFunc("/session/contact", s.withSession(s.updateDraft)).Methods(http.MethodPut)
	api.HandleFunc("/session/delete-mode", s.withSession(s.setDeleteMode)).Methods(http.MethodPut)

	api.HandleFunc("/contacts", s.withSession(s.saveContact)).Methods(http.MethodPost)
	api.HandleFunc("/contacts", s.listContacts).Methods(http.MethodGet)
	api.HandleFunc("/contacts/stats", s.contactStats).Methods(http.MethodGet)
	api.HandleFunc("/contacts/export.csv", s.exportCSV).Methods(http.MethodGet)
	api.HandleFunc("/contacts/export.xlsx", s.exportXLSX).Methods(http.MethodGet)
	api.HandleFunc("/contacts/export.vcf", s.exportVCards).Methods(http.MethodGet)
	api.HandleFunc("/contacts/push", s.pushContacts).Methods(http.MethodPost)
	api.HandleFunc("/contacts/{index:[0-9]+}/vcard", s.contactVCard).Methods(http.MethodGet)
	api.HandleFunc("/contacts/{index:[0-9]+}/image", s.contactImage).Methods(http.MethodGet)
	api.HandleFunc("/contacts/{index:[0-9]+}", s.withSession(s.deleteContact)).Methods(http.MethodDelete)

	return r
}

// HTTPServer returns a configured *http.Server for the API.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Router(),
		ReadTimeout:       s.opts.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.opts.WriteTimeout,
		IdleTimeout:       s.opts.IdleTimeout,
	}
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := s.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
