package engine

import (
	"github.com/agubarev/chapi/pkg/entity"
	"github.com/pkg/errors"
	"github.com/r3labs/diff"
)

// diffLinks returns the ids that disappeared from and appeared in a
// relationship list. When the owner's own id has changed every old link
// is considered removed and every new one added, as the counterparts
// reference the owner by id.
func diffLinks(beforeOwner string, before []string, afterOwner string, after []string) (removed, added []string, err error) {
	before = entity.UniqueLinks(before)
	after = entity.UniqueLinks(after)

	if beforeOwner != afterOwner {
		return before, after, nil
	}

	changelog, err := diff.Diff(nonNil(before), nonNil(after))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to diff relationship lists")
	}

	for _, change := range changelog {
		if from, ok := change.From.(string); ok && !entity.ContainsLink(after, from) {
			removed, _ = entity.AddLink(removed, from)
		}

		if to, ok := change.To.(string); ok && !entity.ContainsLink(before, to) {
			added, _ = entity.AddLink(added, to)
		}
	}

	return removed, added, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}
