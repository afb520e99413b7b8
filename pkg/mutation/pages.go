package mutation

import (
	"context"
	"fmt"

	"github.com/pagecraft/pagecraft/pkg/events"
	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/tree"
)

const copySuffix = " (copy)"

// CreatePage adds an empty draft page. Without an explicit slug one is
// derived from the title, suffixed until it is free.
func (e *Engine) CreatePage(ctx context.Context, req CreatePageRequest) (page *models.Node, err error) {
	o := e.begin("create_page")
	defer func() {
		o.end(err, events.Event{Kind: events.PageCreated, Root: refOf(page), Target: refOf(page)})
	}()

	if err := check(req); err != nil {
		return nil, err
	}
	slug := req.Slug
	if slug == "" {
		if slug, err = tree.UniqueSlug(ctx, e.st, req.Title); err != nil {
			return nil, err
		}
	} else if slug != tree.Slugify(slug) {
		return nil, &models.ConstraintViolationError{Field: "slug", Value: slug, Reason: "not a valid slug"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := models.NewPage(slug, req.Title)
	p.Props.Merge(req.Props.Clone())
	now := e.now()
	p.CreatedAt, p.UpdatedAt = now, now
	if _, err := e.st.Add(ctx, p); err != nil {
		return nil, fmt.Errorf("create page %q: %w", slug, err)
	}
	return p, nil
}

// UpdatePage edits a page's title, slug and props. A published page
// becomes Changed.
func (e *Engine) UpdatePage(ctx context.Context, req UpdatePageRequest) (page *models.Node, err error) {
	ref := models.PageRef(req.Page)
	o := e.begin("update_page")
	defer func() {
		o.end(err, events.Event{Kind: events.PageUpdated, Root: ref, Target: ref})
	}()

	if err := check(req); err != nil {
		return nil, err
	}
	if req.Slug != nil && *req.Slug != tree.Slugify(*req.Slug) {
		return nil, &models.ConstraintViolationError{Field: "slug", Value: *req.Slug, Reason: "not a valid slug"}
	}
	return e.editPage(ctx, ref, func(p *models.Node) {
		if req.Title != nil {
			p.Page.Title = *req.Title
		}
		if req.Slug != nil {
			p.Page.Slug = *req.Slug
		}
		p.Props.Merge(req.Props.Clone())
		p.Touch(e.now())
	})
}

// PublishPage marks a page Published and records when.
func (e *Engine) PublishPage(ctx context.Context, id models.ID) (page *models.Node, err error) {
	ref := models.PageRef(id)
	o := e.begin("publish_page")
	defer func() {
		o.end(err, events.Event{Kind: events.PagePublished, Root: ref, Target: ref})
	}()

	return e.editPage(ctx, ref, func(p *models.Node) {
		now := e.now()
		p.Page.Status = models.StatusPublished
		p.Page.PublishedAt = &now
		p.UpdatedAt = now
	})
}

// UnpublishPage takes a page offline. PublishedAt keeps the last
// publication time.
func (e *Engine) UnpublishPage(ctx context.Context, id models.ID) (page *models.Node, err error) {
	ref := models.PageRef(id)
	o := e.begin("unpublish_page")
	defer func() {
		o.end(err, events.Event{Kind: events.PageUnpublished, Root: ref, Target: ref})
	}()

	return e.editPage(ctx, ref, func(p *models.Node) {
		p.Page.Status = models.StatusUnpublished
		p.UpdatedAt = e.now()
	})
}

func (e *Engine) editPage(ctx context.Context, ref models.Ref, fn func(*models.Node)) (*models.Node, error) {
	n, err := e.st.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := n.Clone()
	if p.Props == nil {
		p.Props = models.Props{}
	}
	fn(p)
	if _, err := e.st.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update %s: %w", ref, err)
	}
	return p, nil
}

// DeletePage removes a page and every block under it. The page record goes
// first so no reader finds it pointing at deleted blocks.
func (e *Engine) DeletePage(ctx context.Context, id models.ID) (err error) {
	ref := models.PageRef(id)
	o := e.begin("delete_page")
	defer func() {
		o.end(err, events.Event{Kind: events.PageDeleted, Root: ref, Target: ref})
	}()

	nodes, err := tree.Collect(ctx, e.st, ref)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.st.RemoveMany(ctx, tree.Refs(nodes)); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	return nil
}

// DuplicatePage copies a page and its blocks. The copy is a draft titled
// "<title> (copy)" with the next free slug.
func (e *Engine) DuplicatePage(ctx context.Context, id models.ID) (page *models.Node, err error) {
	ref := models.PageRef(id)
	o := e.begin("duplicate_page")
	defer func() {
		o.end(err, events.Event{Kind: events.PageCreated, Root: refOf(page), Target: ref})
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.duplicate(ctx, ref, e.now())
}

func refOf(n *models.Node) models.Ref {
	if n == nil {
		return models.Ref{}
	}
	return n.Ref()
}
