package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rcliao/canvas-graph/internal/model"
	"github.com/rcliao/canvas-graph/internal/store"
)

type flushRequest struct {
	Batch []model.PlacementSnapshot `json:"batch" validate:"required,min=1"`
}

type changeRequest struct {
	Type model.ChangeType `json:"type" validate:"required,oneof=add replace remove"`
	ID   string           `json:"id"`
	Item *model.Edge      `json:"item"`
}

type reconcileRequest struct {
	Changes []changeRequest `json:"changes" validate:"dive"`
}

type connectRequest struct {
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"source_handle"`
	TargetHandle string `json:"target_handle"`
}

type addToFrameRequest struct {
	ContentID  string  `json:"content_id" validate:"required"`
	InstanceID string  `json:"instance_id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width" validate:"gte=0"`
	Height     float64 `json:"height" validate:"gte=0"`
}

type removePlacementsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type updateFrameRequest struct {
	Title     *string `json:"title"`
	SortOrder *int    `json:"sort_order" validate:"omitempty,gte=0"`
}

func (s *Server) flushMovements(w http.ResponseWriter, r *http.Request) {
	var req flushRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.svc.FlushMovementBatch(r.Context(), chi.URLParam(r, "id"), req.Batch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"batch_id": id})
}

func (s *Server) listMovements(w http.ResponseWriter, r *http.Request) {
	limit := s.movementLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest))
			return
		}
		limit = n
	}
	batches, err := s.svc.ListMovements(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

func (s *Server) listEdges(w http.ResponseWriter, r *http.Request) {
	edges, err := s.svc.ListEdges(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, edges)
}

func (s *Server) reconcileEdges(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	changes := make([]model.EdgeChange, len(req.Changes))
	for i, c := range req.Changes {
		changes[i] = model.EdgeChange{Type: c.Type, ID: c.ID, Item: c.Item}
	}
	plan, err := s.svc.ReconcileEdges(r.Context(), chi.URLParam(r, "id"), changes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	edge, err := s.svc.Connect(r.Context(), store.ConnectParams{
		FrameID:      chi.URLParam(r, "id"),
		Source:       req.Source,
		Target:       req.Target,
		SourceHandle: req.SourceHandle,
		TargetHandle: req.TargetHandle,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

func (s *Server) deleteEdge(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.DeleteEdge(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "edgeID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getFrame(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.GetFrame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) updateFrame(w http.ResponseWriter, r *http.Request) {
	var req updateFrameRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.svc.UpdateFrame(r.Context(), store.UpdateFrameParams{
		ID:        chi.URLParam(r, "id"),
		Title:     req.Title,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) deleteFrame(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteFrame(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) exportFrame(w http.ResponseWriter, r *http.Request) {
	exp, err := s.svc.ExportFrame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (s *Server) listPlacements(w http.ResponseWriter, r *http.Request) {
	pls, err := s.svc.ListPlacements(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pls)
}

func (s *Server) addToFrame(w http.ResponseWriter, r *http.Request) {
	var req addToFrameRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	pl, err := s.svc.AddToFrame(r.Context(), store.AddToFrameParams{
		FrameID:    chi.URLParam(r, "id"),
		ContentID:  req.ContentID,
		InstanceID: req.InstanceID,
		X:          req.X,
		Y:          req.Y,
		Width:      req.Width,
		Height:     req.Height,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pl)
}

func (s *Server) removePlacements(w http.ResponseWriter, r *http.Request) {
	var req removePlacementsRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.RemovePlacements(r.Context(), chi.URLParam(r, "id"), req.IDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
