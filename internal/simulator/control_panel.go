package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/treadmill-bridge/internal/bt"
)

// ControlPanel serves a small JSON API to steer simulated equipment while
// the bridge is running against it
type ControlPanel struct {
	logger    *log.Logger
	equipment Equipment
	transport *bt.MockTransport
	port      int

	server *http.Server
	wg     sync.WaitGroup
}

// PanelState is returned by GET /api/state
type PanelState struct {
	State
	Profile   string `json:"profile"`
	Connected bool   `json:"connected"`
	Connects  int    `json:"connects"`
}

func NewControlPanel(logger *log.Logger, equipment Equipment, transport *bt.MockTransport, port int) *ControlPanel {
	if logger == nil {
		panic("ControlPanel: logger cannot be nil")
	}
	return &ControlPanel{
		logger:    logger,
		equipment: equipment,
		transport: transport,
		port:      port,
	}
}

// Handler exposes the API routes
func (p *ControlPanel) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", p.handleIndex)
	mux.HandleFunc("/api/state", p.handleGetState)
	mux.HandleFunc("/api/set", p.handleSetValues)
	mux.HandleFunc("/api/writes", p.handleGetWrites)
	mux.HandleFunc("/api/drop-link", p.handleDropLink)
	return mux
}

func (p *ControlPanel) Start() {
	p.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", p.port),
		Handler:           p.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.logger.Printf("ControlPanel: Web server starting on http://localhost:%d", p.port)
		if err := p.server.ListenAndServe(); err != http.ErrServerClosed {
			p.logger.Printf("ControlPanel: Web server error: %v", err)
		}
	}()
}

func (p *ControlPanel) Shutdown() {
	if p.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.server.Shutdown(ctx); err != nil {
		p.logger.Printf("ControlPanel: Error shutting down web server: %v", err)
	}
	p.wg.Wait()
}

func (p *ControlPanel) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "Simulated %s\n\n", p.equipment.Profile().Name())
	fmt.Fprintln(w, "GET  /api/state")
	fmt.Fprintln(w, "POST /api/set?speedKmh=&inclinePct=&silent=")
	fmt.Fprintln(w, "GET  /api/writes")
	fmt.Fprintln(w, "POST /api/drop-link")
}

func (p *ControlPanel) handleGetState(w http.ResponseWriter, r *http.Request) {
	state := PanelState{
		State:   p.equipment.State(),
		Profile: p.equipment.Profile().Name(),
	}
	if p.transport != nil {
		state.Connected = p.transport.Connected()
		state.Connects = p.transport.ConnectCount()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(state)
}

func (p *ControlPanel) handleSetValues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	if s := q.Get("speedKmh"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			http.Error(w, "bad speedKmh", http.StatusBadRequest)
			return
		}
		p.equipment.SetSpeed(v)
	}
	if s := q.Get("inclinePct"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			http.Error(w, "bad inclinePct", http.StatusBadRequest)
			return
		}
		p.equipment.SetIncline(v)
	}
	if s := q.Get("silent"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			http.Error(w, "bad silent", http.StatusBadRequest)
			return
		}
		p.equipment.SetSilent(v)
	}
	w.WriteHeader(http.StatusOK)
}

func (p *ControlPanel) handleGetWrites(w http.ResponseWriter, r *http.Request) {
	writes := []bt.WrittenValue{}
	if p.transport != nil {
		writes = p.transport.Writes()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(writes)
}

func (p *ControlPanel) handleDropLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if p.transport == nil {
		http.Error(w, "no transport", http.StatusConflict)
		return
	}
	p.logger.Printf("ControlPanel: dropping link")
	p.transport.DropLink()
	w.WriteHeader(http.StatusOK)
}
