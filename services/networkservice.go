package services

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/horizon-monitor/reconcile"
	"github.com/ethpandaops/horizon-monitor/types"
)

// NetworkDataSource is a source of horizon protocol facts. Every source maps its native
// representation into the shared output types so that results can be compared field by field.
type NetworkDataSource interface {
	GetGraphNetwork(ctx context.Context) (*types.GraphNetwork, error)
	GetSubgraphService(ctx context.Context) (*types.SubgraphServiceParams, error)
	GetDisputeManager(ctx context.Context) (*types.DisputeManagerParams, error)
	GetIndexer(ctx context.Context, address string) (*types.IndexerFacts, error)
}

const (
	rpcSourceName      = "rpc"
	subgraphSourceName = "subgraph"
)

var (
	reconcileQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "horizon_reconcile_queries_total",
		Help: "Number of reconciled queries by method and result",
	}, []string{"method", "result"})
	reconcileMismatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "horizon_reconcile_mismatches_total",
		Help: "Number of fields on which the rpc and the subgraph disagreed",
	}, []string{"method"})
)

// NetworkService answers protocol queries from the rpc source and cross checks every answer against the subgraph.
type NetworkService struct {
	rpcSource      NetworkDataSource
	subgraphSource NetworkDataSource
	validator      *PayloadValidator
	logger         logrus.FieldLogger
}

func NewNetworkService(rpcSource, subgraphSource NetworkDataSource, validator *PayloadValidator, logger logrus.FieldLogger) *NetworkService {
	if validator == nil {
		validator = NewPayloadValidator()
	}

	return &NetworkService{
		rpcSource:      rpcSource,
		subgraphSource: subgraphSource,
		validator:      validator,
		logger:         logger,
	}
}

func (s *NetworkService) GetGraphNetwork(ctx context.Context) (*types.ReconciledResult[*types.GraphNetwork], error) {
	return reconcileQuery(ctx, s, "getGraphNetwork", func(ctx context.Context, source NetworkDataSource) (*types.GraphNetwork, error) {
		return source.GetGraphNetwork(ctx)
	})
}

func (s *NetworkService) GetSubgraphService(ctx context.Context) (*types.ReconciledResult[*types.SubgraphServiceParams], error) {
	return reconcileQuery(ctx, s, "getSubgraphService", func(ctx context.Context, source NetworkDataSource) (*types.SubgraphServiceParams, error) {
		return source.GetSubgraphService(ctx)
	})
}

func (s *NetworkService) GetDisputeManager(ctx context.Context) (*types.ReconciledResult[*types.DisputeManagerParams], error) {
	return reconcileQuery(ctx, s, "getDisputeManager", func(ctx context.Context, source NetworkDataSource) (*types.DisputeManagerParams, error) {
		return source.GetDisputeManager(ctx)
	})
}

func (s *NetworkService) GetIndexer(ctx context.Context, address string) (*types.ReconciledResult[*types.IndexerFacts], error) {
	return reconcileQuery(ctx, s, "getIndexer", func(ctx context.Context, source NetworkDataSource) (*types.IndexerFacts, error) {
		return source.GetIndexer(ctx, address)
	})
}

// reconcileQuery runs fetch against both sources and waits for both, a failing source never cancels the other.
// Any source error fails the query. On success the rpc payload is validated and returned together with
// the mismatches against the subgraph payload.
func reconcileQuery[T any](ctx context.Context, s *NetworkService, method string, fetch func(ctx context.Context, source NetworkDataSource) (T, error)) (*types.ReconciledResult[T], error) {
	var rpcData, subgraphData T
	var rpcErr, subgraphErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		rpcData, rpcErr = fetch(ctx, s.rpcSource)
	}()
	go func() {
		defer wg.Done()
		subgraphData, subgraphErr = fetch(ctx, s.subgraphSource)
	}()
	wg.Wait()

	logger := s.logger.WithField("method", method)

	if rpcErr != nil {
		if subgraphErr != nil {
			logger.WithError(subgraphErr).Debugf("subgraph source failed too")
		}
		reconcileQueriesTotal.WithLabelValues(method, "source_error").Inc()
		return nil, wrapSourceError(rpcSourceName, method, rpcErr)
	}
	if subgraphErr != nil {
		reconcileQueriesTotal.WithLabelValues(method, "source_error").Inc()
		return nil, wrapSourceError(subgraphSourceName, method, subgraphErr)
	}

	mismatches := reconcile.FindMismatches(rpcData, subgraphData)

	if err := s.validator.Validate(rpcData); err != nil {
		reconcileQueriesTotal.WithLabelValues(method, "validation_error").Inc()
		return nil, &types.ValidationError{
			Method: method,
			Err:    err,
		}
	}

	if len(mismatches) > 0 {
		reconcileMismatchesTotal.WithLabelValues(method).Add(float64(len(mismatches)))
		keys := make([]string, len(mismatches))
		for i, mismatch := range mismatches {
			keys[i] = mismatch.Key
		}
		logger.WithField("fields", keys).Warnf("rpc and subgraph disagree on %v fields", len(mismatches))
		reconcileQueriesTotal.WithLabelValues(method, "mismatch").Inc()
	} else {
		reconcileQueriesTotal.WithLabelValues(method, "match").Inc()
	}

	return &types.ReconciledResult[T]{
		Data:       rpcData,
		Mismatches: mismatches,
	}, nil
}

// wrapSourceError tags err as source error, errors that already carry a source are kept as they are.
func wrapSourceError(source string, method string, err error) error {
	var sourceErr *types.SourceError
	if errors.As(err, &sourceErr) {
		return err
	}

	return &types.SourceError{
		Source: source,
		Method: method,
		Err:    err,
	}
}
