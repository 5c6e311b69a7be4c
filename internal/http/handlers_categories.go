package http

import (
	"net/http"
	"strings"

	"sakinah/internal/core"
	"sakinah/internal/log"
	"sakinah/internal/remote"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	typ, err := parseTypeQuery(r.URL.Query(), "type")
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	cats := s.ctrl.Categories()
	if typ != "" {
		cats = s.ctrl.CategoriesByType(typ)
	}
	if cats == nil {
		cats = []core.Category{}
	}
	NewJSONResponse().Body(cats).Write(w)
}

type categoryRequest struct {
	Name string      `json:"name"`
	Type core.TxType `json:"type"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	cat, err := s.ctrl.AddCategory(r.Context(), core.Category{
		Name: sanitizeInput(req.Name),
		Type: core.TxType(strings.ToLower(string(req.Type))),
	})
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(cat).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var patch remote.CategoryPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if patch.Name != nil {
		name := sanitizeInput(*patch.Name)
		patch.Name = &name
	}
	cat, err := s.ctrl.UpdateCategory(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(cat).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.RemoveCategory(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
