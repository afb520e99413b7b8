package pagecraft

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pagecraft/pagecraft/pkg/integrity"
	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/mutation"
	"github.com/pagecraft/pagecraft/pkg/registry"
	"github.com/pagecraft/pagecraft/pkg/store"
	"github.com/pagecraft/pagecraft/pkg/tree"
)

const maxBodyBytes = 1 << 20

// IDResult is the body returned by operations that create one record.
type IDResult struct {
	ID models.ID `json:"id"`
}

// IDsResult is IDResult for several records.
type IDsResult struct {
	IDs []models.ID `json:"ids"`
}

// RankResult is returned by a template reorder.
type RankResult struct {
	Rank int `json:"rank"`
}

// RenameTemplateRequest is the body of PATCH /api/templates/{id}.
type RenameTemplateRequest struct {
	Name string `json:"name"`
}

// DeleteTemplatesRequest is the body of POST /api/templates/delete.
type DeleteTemplatesRequest struct {
	IDs []models.ID `json:"ids"`
}

// ReadOnlyState is the body of the read-only admin endpoint.
type ReadOnlyState struct {
	ReadOnly bool `json:"read_only"`
}

// Handler returns the HTTP API.
//
//	GET    /api/health
//	GET    /api/types                    block type descriptors
//
//	GET    /api/pages                    list pages
//	POST   /api/pages                    create a page
//	GET    /api/pages/by-slug/{slug}
//	GET    /api/pages/{id}
//	PATCH  /api/pages/{id}               title, slug, props
//	DELETE /api/pages/{id}               page and all its blocks
//	GET    /api/pages/{id}/tree          nested snapshot
//	POST   /api/pages/{id}/publish
//	POST   /api/pages/{id}/unpublish
//	POST   /api/pages/{id}/duplicate
//
//	GET    /api/blocks/{id}
//	GET    /api/blocks/{id}/tree
//
//	POST   /api/tree/add                 mutation.AddRequest
//	POST   /api/tree/delete              mutation.DeleteRequest
//	POST   /api/tree/reorder             mutation.ReorderRequest
//	POST   /api/tree/move                mutation.MoveRequest
//	POST   /api/tree/copy                mutation.CopyRequest
//	POST   /api/tree/copy-many           mutation.CopyManyRequest
//	POST   /api/tree/apply-template      mutation.ApplyTemplateRequest
//	POST   /api/tree/props               mutation.UpdatePropsRequest
//	POST   /api/tree/rename              mutation.RenameRequest
//
//	GET    /api/templates                by rank
//	POST   /api/templates                mutation.SaveTemplateRequest
//	POST   /api/templates/reorder        mutation.ReorderTemplateRequest
//	POST   /api/templates/delete         DeleteTemplatesRequest
//	GET    /api/templates/{id}
//	PATCH  /api/templates/{id}           RenameTemplateRequest
//	DELETE /api/templates/{id}
//	GET    /api/templates/{id}/tree
//
//	GET    /api/admin/check              integrity report
//	GET    /api/admin/read-only
//	PUT    /api/admin/read-only
//
//	GET    /api/events                   websocket change feed
//	GET    /metrics                      Prometheus
func (a *App) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(a.observe)
	router.Handle("/metrics", promhttp.HandlerFor(a.prom, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/types", a.handleTypes).Methods(http.MethodGet)
	api.Handle("/events", a.hub).Methods(http.MethodGet)

	api.HandleFunc("/pages", a.handleListPages).Methods(http.MethodGet)
	api.HandleFunc("/pages", edit(a, http.StatusCreated, func(mutation.CreatePageRequest) models.Ref { return models.Ref{Store: models.CollectionPages} }, a.engine.CreatePage)).Methods(http.MethodPost)
	api.HandleFunc("/pages/by-slug/{slug}", a.handlePageBySlug).Methods(http.MethodGet)
	api.HandleFunc("/pages/{id:[0-9]+}", a.handleGetNode(models.CollectionPages)).Methods(http.MethodGet)
	api.HandleFunc("/pages/{id:[0-9]+}", a.handleUpdatePage).Methods(http.MethodPatch)
	api.HandleFunc("/pages/{id:[0-9]+}", a.pageAction(func(ctx context.Context, id models.ID) (any, error) {
		return nil, a.engine.DeletePage(ctx, id)
	})).Methods(http.MethodDelete)
	api.HandleFunc("/pages/{id:[0-9]+}/tree", a.handleTree(models.CollectionPages)).Methods(http.MethodGet)
	api.HandleFunc("/pages/{id:[0-9]+}/publish", a.pageAction(func(ctx context.Context, id models.ID) (any, error) {
		return a.engine.PublishPage(ctx, id)
	})).Methods(http.MethodPost)
	api.HandleFunc("/pages/{id:[0-9]+}/unpublish", a.pageAction(func(ctx context.Context, id models.ID) (any, error) {
		return a.engine.UnpublishPage(ctx, id)
	})).Methods(http.MethodPost)
	api.HandleFunc("/pages/{id:[0-9]+}/duplicate", a.pageAction(func(ctx context.Context, id models.ID) (any, error) {
		return a.engine.DuplicatePage(ctx, id)
	})).Methods(http.MethodPost)

	api.HandleFunc("/blocks/{id:[0-9]+}", a.handleGetNode(models.CollectionBlocks)).Methods(http.MethodGet)
	api.HandleFunc("/blocks/{id:[0-9]+}/tree", a.handleTree(models.CollectionBlocks)).Methods(http.MethodGet)

	tr := api.PathPrefix("/tree").Subrouter()
	tr.HandleFunc("/add", edit(a, http.StatusCreated, func(r mutation.AddRequest) models.Ref { return treeKey(r.Root, r.Parent) }, withID(a.engine.Add))).Methods(http.MethodPost)
	tr.HandleFunc("/delete", edit(a, http.StatusNoContent, func(r mutation.DeleteRequest) models.Ref { return treeKey(r.Root, r.Parent) }, noResult(a.engine.Delete))).Methods(http.MethodPost)
	tr.HandleFunc("/reorder", edit(a, http.StatusNoContent, func(r mutation.ReorderRequest) models.Ref { return treeKey(r.Root, r.Parent) }, noResult(a.engine.Reorder))).Methods(http.MethodPost)
	tr.HandleFunc("/move", a.handleMove).Methods(http.MethodPost)
	tr.HandleFunc("/copy", edit(a, http.StatusCreated, func(r mutation.CopyRequest) models.Ref { return treeKey(r.Root, r.Parent) }, withID(a.engine.Copy))).Methods(http.MethodPost)
	tr.HandleFunc("/copy-many", edit(a, http.StatusCreated, func(r mutation.CopyManyRequest) models.Ref { return treeKey(r.Root, r.Parent) }, a.copyMany)).Methods(http.MethodPost)
	tr.HandleFunc("/apply-template", edit(a, http.StatusCreated, func(r mutation.ApplyTemplateRequest) models.Ref { return treeKey(r.Root, r.Parent) }, withID(a.engine.ApplyTemplate))).Methods(http.MethodPost)
	tr.HandleFunc("/props", edit(a, http.StatusNoContent, func(r mutation.UpdatePropsRequest) models.Ref { return treeKey(r.Root, r.Target) }, noResult(a.engine.UpdateProps))).Methods(http.MethodPost)
	tr.HandleFunc("/rename", edit(a, http.StatusNoContent, func(r mutation.RenameRequest) models.Ref { return treeKey(r.Root, r.Target) }, noResult(a.engine.Rename))).Methods(http.MethodPost)

	api.HandleFunc("/templates", a.handleListTemplates).Methods(http.MethodGet)
	api.HandleFunc("/templates", edit(a, http.StatusCreated, func(mutation.SaveTemplateRequest) models.Ref { return templateRanks }, a.engine.SaveTemplate)).Methods(http.MethodPost)
	api.HandleFunc("/templates/reorder", edit(a, http.StatusOK, func(mutation.ReorderTemplateRequest) models.Ref { return templateRanks }, a.reorderTemplate)).Methods(http.MethodPost)
	api.HandleFunc("/templates/delete", edit(a, http.StatusNoContent, func(DeleteTemplatesRequest) models.Ref { return templateRanks }, noResult(a.deleteTemplates))).Methods(http.MethodPost)
	api.HandleFunc("/templates/{id:[0-9]+}", a.handleGetTemplate).Methods(http.MethodGet)
	api.HandleFunc("/templates/{id:[0-9]+}", a.handleRenameTemplate).Methods(http.MethodPatch)
	api.HandleFunc("/templates/{id:[0-9]+}", a.handleDeleteTemplate).Methods(http.MethodDelete)
	api.HandleFunc("/templates/{id:[0-9]+}/tree", a.handleTemplateTree).Methods(http.MethodGet)

	api.HandleFunc("/admin/check", a.handleCheck).Methods(http.MethodGet)
	api.HandleFunc("/admin/read-only", a.handleGetReadOnly).Methods(http.MethodGet)
	api.HandleFunc("/admin/read-only", a.handleSetReadOnly).Methods(http.MethodPut)

	router.NotFoundHandler = a.observe(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusNotFound, ErrorBody{Error: "no such route", RequestID: requestID(r)})
	}))
	return router
}

// treeKey picks the gate key for a tree edit. Template trees share the
// rank key because stamping a template rewrites its whole record.
func treeKey(root, fallback models.Ref) models.Ref {
	if root.IsZero() {
		root = fallback
	}
	if root.Store == models.CollectionTemplates {
		return templateRanks
	}
	return root
}

func decode[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return v, nil
}

// edit decodes a request body, holds the gate for its tree and runs op.
func edit[Req, Resp any](a *App, status int, key func(Req) models.Ref, op func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decode[Req](w, r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		release, err := a.gate.Acquire(r.Context(), key(req))
		if err != nil {
			respondError(w, r, err)
			return
		}
		defer release()

		resp, err := op(r.Context(), req)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if status == http.StatusNoContent {
			w.WriteHeader(status)
			return
		}
		respondJSON(w, status, resp)
	}
}

// handleMove holds the gates of both trees a move touches.
func (a *App) handleMove(w http.ResponseWriter, r *http.Request) {
	req, err := decode[mutation.MoveRequest](w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	src, dst := req.Roots()
	release, err := a.gate.AcquireAll(r.Context(), treeKey(src, req.Source.Parent), treeKey(dst, req.Dest.Parent))
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer release()

	if err := a.engine.Move(r.Context(), req); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func withID[Req any](op func(context.Context, Req) (models.ID, error)) func(context.Context, Req) (IDResult, error) {
	return func(ctx context.Context, req Req) (IDResult, error) {
		id, err := op(ctx, req)
		return IDResult{ID: id}, err
	}
}

func noResult[Req any](op func(context.Context, Req) error) func(context.Context, Req) (struct{}, error) {
	return func(ctx context.Context, req Req) (struct{}, error) {
		return struct{}{}, op(ctx, req)
	}
}

func (a *App) copyMany(ctx context.Context, req mutation.CopyManyRequest) (IDsResult, error) {
	ids, err := a.engine.CopyMany(ctx, req)
	return IDsResult{IDs: ids}, err
}

func (a *App) reorderTemplate(ctx context.Context, req mutation.ReorderTemplateRequest) (RankResult, error) {
	rank, err := a.engine.ReorderTemplate(ctx, req)
	return RankResult{Rank: rank}, err
}

func (a *App) deleteTemplates(ctx context.Context, req DeleteTemplatesRequest) error {
	return a.engine.DeleteTemplates(ctx, req.IDs)
}

func pathID(r *http.Request) (models.ID, error) {
	id, err := models.ParseID(mux.Vars(r)["id"])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return id, nil
}

// pageAction runs op on the page named in the path while holding its gate.
// A nil result answers 204.
func (a *App) pageAction(op func(context.Context, models.ID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		release, err := a.gate.Acquire(r.Context(), models.PageRef(id))
		if err != nil {
			respondError(w, r, err)
			return
		}
		defer release()

		res, err := op(r.Context(), id)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if res == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"backend":   a.config.Backend,
		"read_only": a.IsReadOnly(),
	})
}

func (a *App) handleTypes(w http.ResponseWriter, r *http.Request) {
	types := a.registry.Types()
	descs := make([]*registry.Descriptor, 0, len(types))
	for _, name := range types {
		d, err := a.registry.Lookup(name)
		if err != nil {
			continue
		}
		descs = append(descs, d)
	}
	respondJSON(w, http.StatusOK, descs)
}

func (a *App) handleListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := a.store.GetMany(r.Context(), models.CollectionPages, store.SortBy{Field: store.SortByID})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if pages == nil {
		pages = []*models.Node{}
	}
	respondJSON(w, http.StatusOK, pages)
}

func (a *App) handlePageBySlug(w http.ResponseWriter, r *http.Request) {
	page, err := a.store.FindPageBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (a *App) handleGetNode(c models.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		n, err := a.store.Get(r.Context(), models.Ref{Store: c, ID: id})
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, n)
	}
}

func (a *App) handleTree(c models.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		snap, err := tree.Build(r.Context(), a.store, models.Ref{Store: c, ID: id})
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, snap)
	}
}

func (a *App) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := decode[mutation.UpdatePageRequest](w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req.Page = id
	a.pageAction(func(ctx context.Context, _ models.ID) (any, error) {
		return a.engine.UpdatePage(ctx, req)
	})(w, r)
}

func (a *App) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := a.engine.ListTemplates(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if tpls == nil {
		tpls = []*models.Template{}
	}
	respondJSON(w, http.StatusOK, tpls)
}

func (a *App) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	tpl, err := a.store.GetTemplate(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tpl)
}

func (a *App) handleTemplateTree(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	tpl, err := a.store.GetTemplate(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	root := tpl.Root()
	if root.IsZero() {
		respondError(w, r, &models.ConstraintViolationError{Field: "slots.root", Value: tpl.Ref().String(), Reason: "template must hold exactly one root block"})
		return
	}
	snap, err := tree.Build(r.Context(), a.store, models.BlockRef(root))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (a *App) handleRenameTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := decode[RenameTemplateRequest](w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	release, err := a.gate.Acquire(r.Context(), templateRanks)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer release()
	tpl, err := a.engine.RenameTemplate(r.Context(), id, req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tpl)
}

func (a *App) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	release, err := a.gate.Acquire(r.Context(), templateRanks)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer release()
	if err := a.engine.DeleteTemplate(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleCheck(w http.ResponseWriter, r *http.Request) {
	rep, err := integrity.Check(r.Context(), a.store)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

func (a *App) handleGetReadOnly(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ReadOnlyState{ReadOnly: a.IsReadOnly()})
}

func (a *App) handleSetReadOnly(w http.ResponseWriter, r *http.Request) {
	req, err := decode[ReadOnlyState](w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	a.SetReadOnly(req.ReadOnly)
	respondJSON(w, http.StatusOK, ReadOnlyState{ReadOnly: a.IsReadOnly()})
}
