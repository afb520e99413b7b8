package mutation

import (
	"context"
	"errors"
	"fmt"

	"github.com/pagecraft/pagecraft/pkg/events"
	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/tree"
)

// SaveTemplate snapshots the block subtree under req.Source as a new
// template at req.Rank, or last when Rank is nil. Later templates move down
// one rank.
func (e *Engine) SaveTemplate(ctx context.Context, req SaveTemplateRequest) (tpl *models.Template, err error) {
	o := e.begin("save_template")
	defer func() {
		var ref models.Ref
		if tpl != nil {
			ref = tpl.Ref()
		}
		o.end(err, events.Event{Kind: events.TemplateSaved, Root: ref, Target: req.Source})
	}()

	if err := check(req); err != nil {
		return nil, err
	}
	if req.Source.Store != models.CollectionBlocks {
		return nil, &models.ConstraintViolationError{Field: "source", Value: req.Source.String(), Reason: "templates are made from blocks"}
	}
	if req.Rank != nil && *req.Rank < 0 {
		return nil, &models.ConstraintViolationError{Field: "rank", Value: fmt.Sprint(*req.Rank), Reason: "must not be negative"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := e.now()
	root, err := e.duplicate(ctx, req.Source, now)
	if err != nil {
		return nil, err
	}
	tpl = models.NewTemplate(req.Name, root.ID)
	tpl.CreatedAt, tpl.UpdatedAt = now, now
	if req.Rank != nil {
		err = e.ranks.InsertAt(ctx, tpl, *req.Rank)
	} else {
		err = e.ranks.Append(ctx, tpl)
	}
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

// DeleteTemplate removes a template and its blocks, and closes the gap in
// the ranks.
func (e *Engine) DeleteTemplate(ctx context.Context, id models.ID) (err error) {
	ref := models.TemplateRef(id)
	o := e.begin("delete_template")
	defer func() {
		o.end(err, events.Event{Kind: events.TemplateDeleted, Root: ref, Target: ref})
	}()

	tpl, err := e.st.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	blocks, err := e.templateBlocks(ctx, tpl)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.st.RemoveTemplate(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	if err := e.ranks.RemoveAt(ctx, tpl.Order); err != nil {
		return err
	}
	return e.st.RemoveMany(ctx, blocks)
}

// DeleteTemplates removes several templates at once. Ranks are closed in
// one pass after every record is gone. Unknown ids fail the whole call
// before anything is removed.
func (e *Engine) DeleteTemplates(ctx context.Context, ids []models.ID) (err error) {
	o := e.begin("delete_templates")
	defer func() {
		o.end(err, events.Event{Kind: events.TemplateDeleted})
	}()

	tpls := make([]*models.Template, 0, len(ids))
	seen := make(map[models.ID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		tpl, err := e.st.GetTemplate(ctx, id)
		if err != nil {
			return err
		}
		tpls = append(tpls, tpl)
	}
	var blocks []models.Ref
	for _, tpl := range tpls {
		refs, err := e.templateBlocks(ctx, tpl)
		if err != nil {
			return err
		}
		blocks = append(blocks, refs...)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ranks := make([]int, len(tpls))
	for i, tpl := range tpls {
		if err := e.st.RemoveTemplate(ctx, tpl.ID); err != nil {
			return fmt.Errorf("delete %s: %w", tpl.Ref(), err)
		}
		ranks[i] = tpl.Order
	}
	if err := e.ranks.RemoveMany(ctx, ranks); err != nil {
		return err
	}
	return e.st.RemoveMany(ctx, blocks)
}

// templateBlocks lists the blocks under a template's root. A template whose
// tree is already broken yields only what could be reached; the record
// itself can still be deleted.
func (e *Engine) templateBlocks(ctx context.Context, tpl *models.Template) ([]models.Ref, error) {
	root := tpl.Root()
	if root.IsZero() {
		return nil, nil
	}
	var refs []models.Ref
	for n, err := range tree.Walk(ctx, e.st, models.BlockRef(root)) {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrDanglingReference) {
			e.log.Warn().Err(err).Stringer("template", tpl.Ref()).Msg("template tree is incomplete")
			break
		}
		if err != nil {
			return nil, err
		}
		refs = append(refs, n.Ref())
	}
	return refs, nil
}

// ReorderTemplate moves the template at rank req.From beside rank req.To,
// using the same landing rule as slot moves. It returns the final rank.
func (e *Engine) ReorderTemplate(ctx context.Context, req ReorderTemplateRequest) (rank int, err error) {
	o := e.begin("reorder_template")
	defer func() {
		o.end(err, events.Event{Kind: events.TemplateReordered})
	}()

	if err := check(req); err != nil {
		return 0, err
	}
	return e.ranks.Reorder(ctx, req.From, req.To, req.Edge)
}

// RenameTemplate sets a template's name.
func (e *Engine) RenameTemplate(ctx context.Context, id models.ID, name string) (tpl *models.Template, err error) {
	ref := models.TemplateRef(id)
	o := e.begin("rename_template")
	defer func() {
		o.end(err, events.Event{Kind: events.TemplateRenamed, Root: ref, Target: ref})
	}()

	if name == "" {
		return nil, &models.ConstraintViolationError{Field: "name", Reason: "must not be empty"}
	}
	cur, err := e.st.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tpl = cur.Clone()
	tpl.Name = name
	tpl.UpdatedAt = e.now()
	if _, err := e.st.UpdateTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("rename %s: %w", ref, err)
	}
	return tpl, nil
}

// ListTemplates returns every template by rank.
func (e *Engine) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	return e.st.ListTemplates(ctx)
}
