package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/phoxel/phoxel/pkg/engine"
	"github.com/phoxel/phoxel/pkg/export"
	"github.com/phoxel/phoxel/pkg/raster"
	"github.com/phoxel/phoxel/pkg/scene"
	"github.com/phoxel/phoxel/pkg/waveguide"
)

// resolutionSpec is the grid resolution part of a request body.
type resolutionSpec struct {
	Nx       int `json:"nx"`
	Ny       int `json:"ny"`
	Nz       int `json:"nz"`
	PeriodsX int `json:"periodsX,omitempty"`
	PeriodsY int `json:"periodsY,omitempty"`
	Workers  int `json:"workers,omitempty"`
}

func (r resolutionSpec) options() []raster.Option {
	var opts []raster.Option
	if r.PeriodsX > 0 || r.PeriodsY > 0 {
		opts = append(opts, raster.WithPeriods(r.PeriodsX, r.PeriodsY))
	}
	if r.Workers > 0 {
		opts = append(opts, raster.WithWorkers(r.Workers))
	}
	return opts
}

// rasterizeRequest is the body of POST /api/rasterize.
type rasterizeRequest struct {
	Scene scene.Document `json:"scene"`
	resolutionSpec
}

// evaluateRequest is the body of POST /api/evaluate. Source is a scene
// script in the Lisp DSL.
type evaluateRequest struct {
	Source string `json:"source"`
	resolutionSpec
}

// errorResponse is the JSON body of all non-2xx responses.
type errorResponse struct {
	Error  string   `json:"error"`
	Detail []string `json:"detail,omitempty"`
}

type rasterizeHandler struct {
	*Server
}

func (h *rasterizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rasterizeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	wg, err := req.Scene.Build()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid scene: %v", err))
		return
	}

	h.respondGrid(w, wg, req.resolutionSpec)
}

type evaluateHandler struct {
	*Server
}

func (h *evaluateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	eng := engine.NewEngine()
	wg, evalErrs, err := eng.Evaluate(req.Source)
	if err != nil {
		h.log.WithError(err).Error("evaluation failed")
		writeError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}
	if len(evalErrs) > 0 {
		detail := make([]string, len(evalErrs))
		for i, e := range evalErrs {
			detail[i] = e.Error()
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "invalid scene script",
			Detail: detail,
		})
		return
	}

	h.respondGrid(w, *wg, req.resolutionSpec)
}

// respondGrid rasterizes and writes the grid as application/cbor.
func (s *Server) respondGrid(w http.ResponseWriter, wg waveguide.Waveguide, res resolutionSpec) {
	g, err := raster.Rasterize(wg, res.Nx, res.Ny, res.Nz, res.options()...)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := export.EncodeGrid(g)
	if err != nil {
		s.log.WithError(err).Error("grid encoding failed")
		writeError(w, http.StatusInternalServerError, "grid encoding failed")
		return
	}

	s.log.WithFields(log.Fields{
		"nx":     g.Nx,
		"ny":     g.Ny,
		"nz":     g.Nz,
		"bytes":  len(data),
		"layers": len(wg.Stack.Layers()),
	}).Info("rasterized scene")

	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func decodeJSON(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
