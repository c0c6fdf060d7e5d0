package service

import (
	"context"
	"fmt"

	"github.com/sakif/filpulse/internal/query"
)

// DatasetService runs the read-only dataset endpoints: it plans a query for
// the engine's dialect and hands it to the executor.
type DatasetService struct {
	dialect query.Dialect
	exec    *query.Executor
}

func NewDatasetService(dialect query.Dialect, exec *query.Executor) *DatasetService {
	return &DatasetService{dialect: dialect, exec: exec}
}

// List returns one page of s filtered by p, personalized for viewer.
func (d *DatasetService) List(ctx context.Context, s query.Schema, p query.Params, viewer query.Viewer) (*query.Envelope, error) {
	q, err := query.Plan(d.dialect, s, p, viewer)
	if err != nil {
		return nil, err
	}
	return d.exec.List(ctx, q, p.Offset)
}

// Single returns the only row of s. Query parameters do not apply.
func (d *DatasetService) Single(ctx context.Context, s query.Schema, viewer query.Viewer) (query.Row, error) {
	q, err := query.Plan(d.dialect, s, query.Params{}, viewer)
	if err != nil {
		return nil, err
	}
	return d.exec.Single(ctx, q)
}

// Serve runs ep in its mode and returns the JSON-ready result.
func (d *DatasetService) Serve(ctx context.Context, ep query.Endpoint, p query.Params, viewer query.Viewer) (any, error) {
	switch ep.Mode {
	case query.ModeList:
		return d.List(ctx, ep.Schema, p, viewer)
	case query.ModeSingle:
		return d.Single(ctx, ep.Schema, viewer)
	default:
		return nil, fmt.Errorf("service/dataset: endpoint %s has unknown mode %q", ep.Path, ep.Mode)
	}
}
