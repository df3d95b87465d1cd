package nodes

import (
	"context"
	"sort"
	"strings"

	"github.com/chis/pathdesigner/internal/flow"
)

// mergeResultKeys are the fields an align-parts result publishes.
var mergeResultKeys = []string{"file_id", "objects", "object_count"}

// mergeUnit aggregates any number of geometry sources. With one source
// it is a lossless pass-through; with two or more it asks the service
// to align the parts into a combined file, keyed on the sorted set of
// source file ids so topology churn that keeps the set intact never
// re-issues the call.
type mergeUnit struct {
	many     *flow.ManySubscription
	heldKeys []string
}

func newMergeUnit(id string, store *flow.Store) *mergeUnit {
	return &mergeUnit{
		many: flow.SubscribeMany(store, id, "in", flow.WholeData),
	}
}

func (*mergeUnit) Type() flow.NodeType { return flow.NodeMerge }

func (*mergeUnit) SettingsKeys() []string { return nil }

func (u *mergeUnit) Evaluate(ec *Eval) bool {
	values, changed := u.many.Poll()
	if !changed {
		return false
	}

	switch len(values) {
	case 0:
		ec.ResetAsync()
		removed := ec.Remove(missingKeys(u.heldKeys, map[string]any{FieldStatus: nil})...)
		u.heldKeys = []string{FieldStatus}
		return ec.Publish(map[string]any{FieldStatus: StatusIdle}) || removed

	case 1:
		// Merge-of-one is lossless and free: the source's value is
		// copied verbatim, no service call.
		ec.ResetAsync()
		v := values[0]
		removed := ec.Remove(missingKeys(u.heldKeys, v)...)
		u.heldKeys = fieldKeys(v)
		fields := make(map[string]any, len(v))
		for k, val := range v {
			fields[k] = val
		}
		return ec.Publish(fields) || removed

	default:
		ids := make([]string, 0, len(values))
		for _, v := range values {
			id, _ := v["file_id"].(string)
			if id == "" {
				// A source has not produced a file yet. Keep the
				// last merged output and wait.
				ec.ResetAsync()
				return ec.Publish(map[string]any{FieldStatus: StatusIdle})
			}
			ids = append(ids, id)
		}
		sort.Strings(ids)

		stale := map[string]any{FieldStatus: nil}
		for _, k := range mergeResultKeys {
			stale[k] = nil
		}
		removed := ec.Remove(missingKeys(u.heldKeys, stale)...)
		u.heldKeys = append([]string{FieldStatus, FieldError}, mergeResultKeys...)

		issued := ec.Async("align:"+strings.Join(ids, "|"), func(ctx context.Context, svc Service) (map[string]any, error) {
			result, err := svc.AlignParts(ctx, ids)
			if err != nil {
				return nil, err
			}
			return asFields(result)
		})
		return issued || removed
	}
}
