// Package transcriptapi implements spec §4.8's single public output surface
// as a read-only HTTP API: verifiers fetch the SBB transcript and ask the
// server to check a disclosed cut-and-choose proof against it.
package transcriptapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mitmedialab/split-value-voting/log"
	"github.com/mitmedialab/split-value-voting/proof"
	"github.com/mitmedialab/split-value-voting/sbb"
)

const (
	// ReadAllEndpoint lists every posted SBB entry, in total order.
	ReadAllEndpoint = "/sbb"
	// ReadLabelEndpoint lists every entry posted under one label.
	ReadLabelEndpoint = "/sbb/{label}"
	// VerifyEndpoint checks a posted proof against posted commitments.
	VerifyEndpoint = "/verify"
)

// Config is the configuration for the transcript API HTTP server (spec §4.7
// "The SBB is the sole public output of the core").
type Config struct {
	Host string
	Port int
	// Board is the bulletin board to expose. Required.
	Board *sbb.Board
	// VerifyFn performs proof verification for the /verify endpoint, e.g. a
	// closure over an election's race moduli and posted commitments.
	// Optional: if nil, /verify responds 501 Not Implemented.
	VerifyFn func(req VerifyRequest) error
}

// API is the read-only transcript HTTP server.
type API struct {
	router   *chi.Mux
	board    *sbb.Board
	verifyFn func(req VerifyRequest) error
}

// New creates a transcript API server and starts listening in the
// background, mirroring the teacher's `api.New` pattern.
func New(conf *Config) (*API, error) {
	if conf == nil || conf.Board == nil {
		return nil, errMissingBoard
	}

	a := &API{board: conf.Board, verifyFn: conf.VerifyFn}
	a.initRouter()

	go func() {
		addr := conf.Host + ":" + strconv.Itoa(conf.Port)
		log.Infow("starting transcript API server", "addr", addr)
		if err := http.ListenAndServe(addr, a.router); err != nil {
			log.Errorf("transcript API server stopped: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router, for testing purposes.
func (a *API) Router() *chi.Mux {
	return a.router
}

func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}).Handler)
	a.router.Use(middleware.Recoverer)

	log.Infow("register handler", "endpoint", ReadAllEndpoint, "method", "GET")
	a.router.Get(ReadAllEndpoint, a.readAll)
	log.Infow("register handler", "endpoint", ReadLabelEndpoint, "method", "GET")
	a.router.Get(ReadLabelEndpoint, a.readLabel)
	log.Infow("register handler", "endpoint", VerifyEndpoint, "method", "POST")
	a.router.Post(VerifyEndpoint, a.verify)
}

func (a *API) readAll(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.board.ReadAll())
}

func (a *API) readLabel(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	writeJSON(w, a.board.ReadLabel(label))
}

// VerifyRequest is the JSON body accepted by /verify: a race id and its
// disclosed cut-and-choose transcript (spec §4.5).
type VerifyRequest struct {
	RaceID     string            `json:"race_id"`
	Transcript *proof.Transcript `json:"transcript"`
}

// VerifyResponse reports whether the transcript passed verification.
type VerifyResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func (a *API) verify(w http.ResponseWriter, r *http.Request) {
	if a.verifyFn == nil {
		http.Error(w, "verification not configured", http.StatusNotImplemented)
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.verifyFn(req); err != nil {
		writeJSON(w, VerifyResponse{Valid: false, Reason: err.Error()})
		return
	}
	writeJSON(w, VerifyResponse{Valid: true})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warnw("failed to write transcript API response", "error", err)
	}
}

var errMissingBoard = errors.New("transcriptapi: missing SBB board in config")
