package mutation

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/pagecraft/pagecraft/pkg/models"
)

// stampRoot sets UpdatedAt on the tree's owner unless it is one of the
// records the operation already wrote. A zero root is skipped.
func (e *Engine) stampRoot(ctx context.Context, root models.Ref, now time.Time, written ...models.Ref) error {
	if root.IsZero() || slices.Contains(written, root) {
		return nil
	}
	switch root.Store {
	case models.CollectionTemplates:
		tpl, err := e.st.GetTemplate(ctx, root.ID)
		if err != nil {
			return fmt.Errorf("stamp %s: %w", root, err)
		}
		tpl = tpl.Clone()
		tpl.UpdatedAt = now
		if _, err := e.st.UpdateTemplate(ctx, tpl); err != nil {
			return fmt.Errorf("stamp %s: %w", root, err)
		}
	case models.CollectionPages, models.CollectionBlocks:
		n, err := e.st.Get(ctx, root)
		if err != nil {
			return fmt.Errorf("stamp %s: %w", root, err)
		}
		n = n.Clone()
		n.Touch(now)
		if _, err := e.st.Update(ctx, n); err != nil {
			return fmt.Errorf("stamp %s: %w", root, err)
		}
	default:
		return fmt.Errorf("stamp %s: unknown collection", root)
	}
	return nil
}
