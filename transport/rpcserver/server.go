// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package rpcserver exposes a server.Server over HTTP, one route per
// RPC in spec.md §6's table, encoded with the wire package. It is
// grounded on the teacher's restserver package (gorilla/mux routing,
// github.com/ugorji/go/codec JSON encoding) generalized from
// Coordinate's rich resource model down to RTE's nine flat RPCs, with
// urfave/negroni added as request logging/recovery middleware (a
// teacher dependency that existed in go.mod but was never wired into
// any teacher file).
package rpcserver

import (
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
	"github.com/urfave/negroni"
	"golang.org/x/net/netutil"

	"github.com/diffeo/go-rte/rte"
	"github.com/diffeo/go-rte/server"
	"github.com/diffeo/go-rte/wire"
)

// MaxConnections bounds the number of simultaneously accepted
// connections a Listen'd server will serve, per spec.md §9's
// suggested transport thread-pool bound.
const MaxConnections = 1024

var jsonHandle = &codec.JsonHandle{}

// api holds the handler state for one mounted server.Server.
type api struct {
	core *server.Server
	log  *logrus.Logger
}

// NewRouter builds an http.Handler exposing core's RPCs under /v1,
// wrapped in negroni's standard logging and panic-recovery
// middleware. A nil log gets a discard-level default logger.
func NewRouter(core *server.Server, log *logrus.Logger) http.Handler {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	a := &api{core: core, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/v1/next-id", a.getNextID).Methods("GET")
	r.HandleFunc("/v1/next-id/{id}", a.returnID).Methods("POST")
	r.HandleFunc("/v1/tasks", a.addTask).Methods("POST")
	r.HandleFunc("/v1/tasks/next", a.getTask).Methods("GET")
	r.HandleFunc("/v1/results", a.setResult).Methods("POST")
	r.HandleFunc("/v1/results/query", a.getResults).Methods("POST")
	r.HandleFunc("/v1/tasks/{id}/cancel", a.cancelTask).Methods("POST")
	r.HandleFunc("/v1/tasks/{id}/poll", a.isTaskCanceled).Methods("POST")
	r.HandleFunc("/v1/release", a.release).Methods("POST")

	n := negroni.New(negroni.NewRecovery(), negroni.NewLogger())
	n.UseHandler(r)
	return n
}

// Listen starts an HTTP server serving NewRouter(core, log) on addr,
// with simultaneous accepted connections capped at MaxConnections.
// It blocks until the listener errors (e.g. on Close).
func Listen(addr string, core *server.Server, log *logrus.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln = netutil.LimitListener(ln, MaxConnections)
	return http.Serve(ln, NewRouter(core, log))
}

func (a *api) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := codec.NewEncoder(w, jsonHandle)
	if err := enc.Encode(v); err != nil {
		a.log.WithField("error", err).Warn("rpcserver failed to encode response")
	}
}

func (a *api) writeError(w http.ResponseWriter, status int, err error) {
	a.writeJSON(w, status, wire.ErrorResponse{Error: err.Error()})
}

func (a *api) decodeBody(r *http.Request, out interface{}) error {
	dec := codec.NewDecoder(r.Body, jsonHandle)
	return dec.Decode(out)
}

func idFromPath(r *http.Request) (uint64, error) {
	return strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
}

func (a *api) getNextID(w http.ResponseWriter, r *http.Request) {
	id, ok := a.core.GetNextID()
	a.writeJSON(w, http.StatusOK, wire.NextIDResponse{ID: id, Available: ok})
}

func (a *api) returnID(w http.ResponseWriter, r *http.Request) {
	id, err := idFromPath(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	a.core.ReturnID(id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) addTask(w http.ResponseWriter, r *http.Request) {
	var msg wire.TaskMessage
	if err := a.decodeBody(r, &msg); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	a.core.AddTask(msg.ToTask())
	w.WriteHeader(http.StatusNoContent)
}

// getTask long-polls server.Server.GetTask, which has no context
// parameter of its own, so it is run on a background goroutine raced
// against the request's cancellation. If the client disconnects
// first, that goroutine is left blocked until a task or release
// eventually arrives; whatever it then receives is dropped, and a
// task dropped this way ends as a timed-out failure, since GetTask
// has already registered its heartbeat. Operators should pair this with client-side retry
// rather than aggressive request timeouts, exactly as spec.md §6
// requires of callers of the in-process GetTask.
func (a *api) getTask(w http.ResponseWriter, r *http.Request) {
	taskCh := make(chan *rte.Task, 1)
	go func() { taskCh <- a.core.GetTask() }()

	select {
	case task := <-taskCh:
		if task == nil {
			a.writeJSON(w, http.StatusOK, wire.GetTaskResponse{Task: nil})
			return
		}
		msg := wire.FromTask(*task)
		a.writeJSON(w, http.StatusOK, wire.GetTaskResponse{Task: &msg})
	case <-r.Context().Done():
		a.writeError(w, http.StatusRequestTimeout, r.Context().Err())
	}
}

func (a *api) setResult(w http.ResponseWriter, r *http.Request) {
	var msg wire.ResultMessage
	if err := a.decodeBody(r, &msg); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	a.core.SetResult(msg.ToResult())
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) getResults(w http.ResponseWriter, r *http.Request) {
	var req wire.GetResultsRequest
	if err := a.decodeBody(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	results := a.core.GetResults(req.TaskIDs)
	out := make([]*wire.ResultMessage, len(results))
	for i, res := range results {
		if res == nil {
			continue
		}
		msg := wire.FromResult(*res)
		out[i] = &msg
	}
	a.writeJSON(w, http.StatusOK, wire.GetResultsResponse{Results: out})
}

func (a *api) cancelTask(w http.ResponseWriter, r *http.Request) {
	id, err := idFromPath(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	a.core.CancelTask(id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) isTaskCanceled(w http.ResponseWriter, r *http.Request) {
	id, err := idFromPath(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	canceled := a.core.IsTaskCanceled(id)
	a.writeJSON(w, http.StatusOK, wire.IsTaskCanceledResponse{Canceled: canceled})
}

func (a *api) release(w http.ResponseWriter, r *http.Request) {
	a.core.ReleaseWaitingWorkers()
	w.WriteHeader(http.StatusNoContent)
}
