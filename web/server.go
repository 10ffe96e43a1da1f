// Package web is an HTTP front end over one scene. Requests are translated
// into scene.Manager calls; notifications reach browsers via /ws.
package web

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/mogaika/assetpipe/asset"
	"github.com/mogaika/assetpipe/scene"
	"github.com/mogaika/assetpipe/status"
)

type Server struct {
	// lock serializes every scene call: the scene has a single writer.
	lock  sync.Mutex
	scene *scene.Manager
	hub   *status.Hub
	root  string

	// Vehicle fills the options a vehicle save request leaves empty.
	Vehicle scene.VehicleOptions

	upgrader websocket.Upgrader
}

// NewServer subscribes hub to s. Relative request paths resolve under root.
func NewServer(s *scene.Manager, hub *status.Hub, root string) *Server {
	s.Subscribe(hub)
	return &Server{scene: s, hub: hub, root: filepath.Clean(root)}
}

// resolve maps a request path into root and rejects anything outside it.
func (s *Server) resolve(p string) (string, error) {
	if p == "" {
		return "", asset.Validationf("path", "empty path")
	}
	full := filepath.Join(s.root, filepath.FromSlash(p))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", asset.Validationf("path", "%q is outside of the asset root", p)
	}
	return full, nil
}

func (s *Server) routes(r *mux.Router) {
	r.HandleFunc("/json/formats", s.HandlerFormats)
	r.HandleFunc("/json/scene", s.HandlerScene)
	r.HandleFunc("/json/model/{model}", s.HandlerModel)
	r.HandleFunc("/action/load", s.HandlerLoad).Methods("POST")
	r.HandleFunc("/action/save/{model}", s.HandlerSave).Methods("POST")
	r.HandleFunc("/action/reset", s.HandlerReset).Methods("POST")
	r.HandleFunc("/action/process", s.HandlerProcess).Methods("POST")
	r.HandleFunc("/action/bone/{key}/{action}", s.HandlerBoneAction).Methods("POST")
	r.HandleFunc("/action/vehicle/{action}", s.HandlerVehicleAction).Methods("POST")
	r.HandleFunc("/dump/model/{model}", s.HandlerDumpModel)
	r.HandleFunc("/dump/model/{model}/json", s.HandlerDumpModelJson)
	r.HandleFunc("/texture/{name}", s.HandlerTexture)
	r.HandleFunc("/ws", s.HandlerWebsocket)
}

// Router serves the API without static files.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	s.routes(r)
	return handlers.RecoveryHandler()(r)
}

// Start serves the API and the static files under webPath/data.
func (s *Server) Start(addr string, webPath string) error {
	r := mux.NewRouter()
	s.routes(r)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(filepath.Join(webPath, "data"))))

	h := handlers.RecoveryHandler()(r)
	h = handlers.LoggingHandler(os.Stdout, h)

	log.Printf("[web] Starting server %v", addr)

	return http.ListenAndServe(addr, h)
}
