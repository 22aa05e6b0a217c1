package subgraph

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/horizon-monitor/types"
	"github.com/ethpandaops/horizon-monitor/utils"
)

const QoSSourceName = "qos-subgraph"

type dailyDataResponse struct {
	IndexerDailyDataPoints []struct {
		Indexer    entityRef `json:"indexer"`
		DayStart   BigInt    `json:"dayStart"`
		QueryCount BigInt    `json:"query_count"`
	} `json:"indexerDailyDataPoints"`
}

// QoSSubgraph reads per indexer query volume from the gateway QoS subgraph.
type QoSSubgraph struct {
	client   *Client
	pageSize int
	logger   logrus.FieldLogger
}

func NewQoSSubgraph(client *Client, pageSize int, logger logrus.FieldLogger) *QoSSubgraph {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &QoSSubgraph{
		client:   client,
		pageSize: pageSize,
		logger:   logger,
	}
}

// GetIndexerDailyData returns all daily data points with a day start strictly after sinceUnix.
func (s *QoSSubgraph) GetIndexerDailyData(ctx context.Context, sinceUnix int64) ([]*types.DailyDataPoint, error) {
	dataPoints := []*types.DailyDataPoint{}

	for skip := 0; ; skip += s.pageSize {
		response := &dailyDataResponse{}
		err := s.client.Query(ctx, "IndexerDailyData", map[string]interface{}{
			"dayStart_gt": strconv.FormatInt(sinceUnix, 10),
			"first":       s.pageSize,
			"skip":        skip,
		}, response)
		if err != nil {
			return nil, err
		}

		for _, point := range response.IndexerDailyDataPoints {
			dataPoints = append(dataPoints, &types.DailyDataPoint{
				IndexerID:  utils.CanonicalAddress(point.Indexer.ID),
				DayStart:   point.DayStart.Int64(),
				QueryCount: point.QueryCount.Big(),
			})
		}

		if len(response.IndexerDailyDataPoints) < s.pageSize {
			break
		}
	}

	s.logger.WithField("points", len(dataPoints)).Debugf("loaded indexer daily data")

	return dataPoints, nil
}
