package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/DeepSignSecurity/trackpad-go/core"
	"github.com/DeepSignSecurity/trackpad-go/memorywriter"
)

// This package serves the actual device API. The logic of enumeration
// and handle lifecycle is in the core package; here we only deal with
// converting requests to core calls and formatting the replies.

const (
	streamBuffer = 256
	writeTimeout = 10 * time.Second
)

type session struct {
	id     string
	path   string
	handle *core.Handle
}

type api struct {
	core    *core.Core
	version string
	logger  *memorywriter.MemoryWriter

	sessions      map[string]*session
	sessionsMutex sync.Mutex

	upgrader websocket.Upgrader
}

// ServeAPI registers the JSON endpoints on the POST router and the
// websocket stream on the GET router. The same origin validator guards
// both routers and the websocket upgrade.
func ServeAPI(post *mux.Router, ws *mux.Router, c *core.Core, v string, l *memorywriter.MemoryWriter, validator OriginValidator) {
	a := &api{
		core:     c,
		version:  v,
		logger:   l,
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return validator(r.Header.Get("Origin"))
			},
		},
	}
	post.HandleFunc("/", a.Info)
	post.HandleFunc("/configure", a.Info)
	post.HandleFunc("/enumerate", a.Enumerate)
	post.HandleFunc("/default", a.AcquireDefault)
	post.HandleFunc("/acquire/{path}", a.Acquire)
	post.HandleFunc("/release/{session}", a.Release)
	post.HandleFunc("/props/{session}", a.Props)
	ws.HandleFunc("/{session}", a.Listen)

	post.Use(CORS(validator))
	ws.Use(CORS(validator))
}

func (a *api) Info(w http.ResponseWriter, r *http.Request) {
	a.logger.Log("version " + a.version)

	type info struct {
		Version string `json:"version"`
	}
	err := json.NewEncoder(w).Encode(info{
		Version: a.version,
	})
	a.checkJSONError(w, err)
}

func (a *api) Enumerate(w http.ResponseWriter, r *http.Request) {
	a.logger.Log("start")
	e, err := a.core.Enumerate()
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.logger.Log("encoding and exiting")
	err = json.NewEncoder(w).Encode(e)
	a.checkJSONError(w, err)
}

type acquireResult struct {
	Session string `json:"session"`
	Path    string `json:"path"`
	Class   string `json:"class"`
}

func (a *api) Acquire(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	path := vars["path"]

	h, err := a.core.Open(path)
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respondAcquired(w, h)
}

func (a *api) AcquireDefault(w http.ResponseWriter, r *http.Request) {
	h, err := a.core.Default()
	if err != nil {
		a.respondError(w, err)
		return
	}
	a.respondAcquired(w, h)
}

func (a *api) respondAcquired(w http.ResponseWriter, h *core.Handle) {
	s := &session{
		id:     uuid.New().String(),
		path:   h.Info().Path,
		handle: h,
	}

	a.sessionsMutex.Lock()
	a.sessions[s.id] = s
	a.sessionsMutex.Unlock()

	a.logger.Log("acquired " + s.path + " as " + s.id)
	err := json.NewEncoder(w).Encode(acquireResult{
		Session: s.id,
		Path:    s.path,
		Class:   h.Class().String(),
	})
	a.checkJSONError(w, err)
}

func (a *api) session(r *http.Request) *session {
	vars := mux.Vars(r)
	a.sessionsMutex.Lock()
	defer a.sessionsMutex.Unlock()
	return a.sessions[vars["session"]]
}

func (a *api) Release(w http.ResponseWriter, r *http.Request) {
	a.logger.Log("start")

	s := a.session(r)
	if s == nil {
		a.respondError(w, core.ErrNoDevice)
		return
	}

	a.sessionsMutex.Lock()
	delete(a.sessions, s.id)
	a.sessionsMutex.Unlock()

	if err := a.core.Release(s.path); err != nil {
		a.respondError(w, err)
		return
	}

	a.logger.Log("done, encoding")
	err := json.NewEncoder(w).Encode(mux.Vars(r))
	a.checkJSONError(w, err)
}

type propsResult struct {
	Path          string  `json:"path"`
	DeviceID      uint64  `json:"deviceId"`
	FamilyID      int32   `json:"familyId"`
	Builtin       bool    `json:"builtin"`
	Class         string  `json:"class"`
	DriverType    int32   `json:"driverType"`
	SensorRows    int32   `json:"sensorRows"`
	SensorCols    int32   `json:"sensorCols"`
	SurfaceWidth  float64 `json:"surfaceWidth"`  // centimeters
	SurfaceHeight float64 `json:"surfaceHeight"` // centimeters
	Running       bool    `json:"running"`
	Dropped       uint64  `json:"dropped"`
}

func (a *api) Props(w http.ResponseWriter, r *http.Request) {
	s := a.session(r)
	if s == nil {
		a.respondError(w, core.ErrNoDevice)
		return
	}

	h := s.handle
	rows, cols := h.SensorDimensions()
	width, height := h.SurfaceSize()
	err := json.NewEncoder(w).Encode(propsResult{
		Path:          s.path,
		DeviceID:      h.DeviceID(),
		FamilyID:      h.FamilyID(),
		Builtin:       h.Builtin(),
		Class:         h.Class().String(),
		DriverType:    h.DriverType(),
		SensorRows:    rows,
		SensorCols:    cols,
		SurfaceWidth:  width,
		SurfaceHeight: height,
		Running:       h.Running(),
		Dropped:       h.Dropped(),
	})
	a.checkJSONError(w, err)
}

// Listen upgrades to a websocket and forwards every touch record of the
// session's device as one JSON message. The stream ends when the device
// is stopped or the client goes away.
func (a *api) Listen(w http.ResponseWriter, r *http.Request) {
	s := a.session(r)
	if s == nil {
		a.respondError(w, core.ErrNoDevice)
		return
	}

	ch, err := s.handle.Stream(streamBuffer)
	if err != nil {
		a.respondError(w, err)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Log("upgrade failed " + err.Error())
		_ = s.handle.Stop()
		return
	}
	a.logger.Log("streaming " + s.path + " to " + r.RemoteAddr)

	// the read side only watches for the client closing
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				_ = s.handle.Stop()
				return
			}
		}
	}()

	for t := range ch {
		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			break
		}
		if err := conn.WriteJSON(t); err != nil {
			a.logger.Log("write failed " + err.Error())
			_ = s.handle.Stop()
			break
		}
	}

	// drain in case the write loop broke before the stream closed
	for range ch {
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	a.logger.Log("stream done " + s.path)
}

func (a *api) checkJSONError(w http.ResponseWriter, err error) {
	if err != nil {
		a.respondError(w, err)
	}
}

func (a *api) respondError(w http.ResponseWriter, err error) {
	type jsonError struct {
		Error string `json:"error"`
	}
	a.logger.Log("Returning error: " + err.Error())
	w.WriteHeader(http.StatusBadRequest)

	// if even the encoder of the error errors, just log the error
	err = json.NewEncoder(w).Encode(jsonError{
		Error: err.Error(),
	})
	if err != nil {
		a.logger.Log("Error while writing error: " + err.Error())
	}
}
