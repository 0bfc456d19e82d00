package service

import (
	"context"
	"fmt"

	"github.com/anthanhphan/go-dhash-replication/internal/dhash/domain"
	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
)

// treeQueryService answers the peer-facing side of a reconciliation pass.
type treeQueryService struct {
	core *ReplicatedService
}

func newTreeQueryService(core *ReplicatedService) *treeQueryService {
	return &treeQueryService{core: core}
}

func (s *treeQueryService) rootDigest(ctx context.Context, arc ring.Arc) (domain.RootInfo, error) {
	held, err := s.core.router.HeldArc(ctx)
	if err != nil {
		return domain.RootInfo{}, fmt.Errorf("%w: held arc: %w", domain.ErrRoutingFailure, err)
	}
	return domain.RootInfo{
		Shape: s.core.index.Shape(),
		Cover: s.core.index.Cover(arc),
		Held:  held,
	}, nil
}

func (s *treeQueryService) children(ctx context.Context, r merkle.Range) ([]merkle.RangeDigest, error) {
	return s.core.index.Children(r)
}

func (s *treeQueryService) leafEntries(ctx context.Context, r merkle.Range) ([]merkle.Entry, error) {
	return s.core.index.LeafEntries(r)
}
