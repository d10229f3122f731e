package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rcliao/canvas-graph/internal/model"
	"github.com/rcliao/canvas-graph/internal/store"
)

type createWorkspaceRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type addMemberRequest struct {
	UserID string     `json:"user_id" validate:"required"`
	Role   model.Role `json:"role" validate:"required,oneof=owner editor viewer"`
}

type createChannelRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
}

type createFrameRequest struct {
	Title string `json:"title" validate:"max=200"`
}

type createContentRequest struct {
	Variant    model.Variant `json:"variant" validate:"required"`
	Title      string        `json:"title"`
	Value      string        `json:"value"`
	Thought    string        `json:"thought"`
	X          *float64      `json:"x"`
	Y          *float64      `json:"y"`
	Width      *float64      `json:"width" validate:"omitempty,gte=0"`
	Height     *float64      `json:"height" validate:"omitempty,gte=0"`
	FrameID    string        `json:"frame_id"`
	InstanceID string        `json:"instance_id"`
}

type updateContentRequest struct {
	Variant *model.Variant `json:"variant"`
	Title   *string        `json:"title"`
	Value   *string        `json:"value"`
	Thought *string        `json:"thought"`
}

type threadRequest struct {
	OtherID string `json:"other_id" validate:"required"`
}

type metadataRequest struct {
	URL         string `json:"url" validate:"required,url"`
	Platform    string `json:"platform"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	SiteName    string `json:"site_name"`
	PublishedAt string `json:"published_at"`
}

type contentResponse struct {
	Content   *model.ContentNode `json:"content"`
	Placement *model.Placement   `json:"placement,omitempty"`
}

func (s *Server) createWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ws, err := s.svc.CreateWorkspace(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.svc.AddMember(r.Context(), store.AddMemberParams{
		WorkspaceID: chi.URLParam(r, "id"),
		UserID:      req.UserID,
		Role:        req.Role,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) createChannel(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ch, err := s.svc.CreateChannel(r.Context(), store.CreateChannelParams{
		WorkspaceID: chi.URLParam(r, "id"),
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := store.SearchParams{
		WorkspaceID: chi.URLParam(r, "id"),
		ChannelID:   q.Get("channel"),
		Query:       q.Get("q"),
		Variant:     model.Variant(q.Get("variant")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest))
			return
		}
		p.Limit = n
	}
	nodes, err := s.svc.Search(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) listFrames(w http.ResponseWriter, r *http.Request) {
	frames, err := s.svc.ListFrames(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, frames)
}

func (s *Server) createFrame(w http.ResponseWriter, r *http.Request) {
	var req createFrameRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.svc.CreateFrame(r.Context(), store.CreateFrameParams{ChannelID: chi.URLParam(r, "id"), Title: req.Title})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) listContent(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.svc.ListContent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) createContent(w http.ResponseWriter, r *http.Request) {
	var req createContentRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, pl, err := s.svc.CreateContent(r.Context(), store.CreateContentParams{
		ChannelID:  chi.URLParam(r, "id"),
		Variant:    req.Variant,
		Title:      req.Title,
		Value:      req.Value,
		Thought:    req.Thought,
		X:          req.X,
		Y:          req.Y,
		Width:      req.Width,
		Height:     req.Height,
		FrameID:    req.FrameID,
		InstanceID: req.InstanceID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, contentResponse{Content: n, Placement: pl})
}

func (s *Server) importFrame(w http.ResponseWriter, r *http.Request) {
	var exp store.FrameExport
	if err := s.decode(w, r, &exp); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.ImportFrame(r.Context(), chi.URLParam(r, "id"), &exp)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) getContent(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.GetContent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) updateContent(w http.ResponseWriter, r *http.Request) {
	var req updateContentRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.svc.UpdateContent(r.Context(), store.UpdateContentParams{
		ID:      chi.URLParam(r, "id"),
		Variant: req.Variant,
		Title:   req.Title,
		Value:   req.Value,
		Thought: req.Thought,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) deleteContent(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteContent(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) gatherContext(w http.ResponseWriter, r *http.Request) {
	uc, err := s.svc.GatherUpstreamContext(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uc)
}

func (s *Server) connectThreads(w http.ResponseWriter, r *http.Request) {
	var req threadRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.ConnectThreads(r.Context(), chi.URLParam(r, "id"), req.OtherID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) disconnectThreads(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DisconnectThreads(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "otherID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getMetadata(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeError(w, r, fmt.Errorf("%w: url is required", errBadRequest))
		return
	}
	m, err := s.svc.GetLinkMetadata(r.Context(), url)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) putMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.svc.PutLinkMetadata(r.Context(), model.LinkMetadata{
		URL:         req.URL,
		Platform:    req.Platform,
		Title:       req.Title,
		Description: req.Description,
		Author:      req.Author,
		SiteName:    req.SiteName,
		PublishedAt: req.PublishedAt,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
