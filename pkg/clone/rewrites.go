package clone

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/targets"
)

// RewriteResult reports how many rewrites reached the destination.
type RewriteResult struct {
	Copied int
	Total  int
}

// CopyRewrites copies the rewrites of srcID to dstID. A source without rewrite
// support copies nothing and succeeds. A bulk PUT is tried first; if it fails,
// each rewrite is posted on its own and the failures are returned together.
func CopyRewrites(ctx context.Context, src, dst nextdns.API, srcID, dstID string, log targets.Logger) (RewriteResult, error) {
	log = targets.LoggerOrNop(log)

	rws, err := src.ListRewrites(ctx, srcID)
	if nextdns.IsNotFound(err) {
		log.Debugf("Profile %s has no rewrites endpoint, skipping", srcID)
		return RewriteResult{}, nil
	}
	if err != nil {
		return RewriteResult{}, fmt.Errorf("listing rewrites: %w", err)
	}

	res := RewriteResult{Total: len(rws)}
	if len(rws) == 0 {
		return res, nil
	}

	stripped := make([]nextdns.Rewrite, 0, len(rws))
	for _, rw := range rws {
		stripped = append(stripped, nextdns.Rewrite{Name: rw.Name, Content: rw.Content})
	}

	putErr := dst.PutRewrites(ctx, dstID, stripped)
	if putErr == nil {
		res.Copied = len(stripped)
		return res, nil
	}
	log.Warnf("Bulk rewrite copy failed (%v), falling back to one request per rewrite", putErr)

	var merr *multierror.Error
	for _, rw := range stripped {
		if err := dst.AddRewrite(ctx, dstID, rw); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("rewrite %s: %w", rw.Name, err))
			continue
		}
		res.Copied++
	}
	if err := merr.ErrorOrNil(); err != nil {
		log.Errorf("%d of %d rewrites could not be copied: %v", res.Total-res.Copied, res.Total, err)
		return res, err
	}
	return res, nil
}
