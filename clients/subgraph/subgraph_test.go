package subgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	Authorization string                 `json:"-"`
}

// fakeSubgraph serves canned GraphQL responses and records the received requests.
type fakeSubgraph struct {
	mutex    sync.Mutex
	requests []*recordedRequest
	handler  func(req *recordedRequest) (int, string)
}

func (f *fakeSubgraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := &recordedRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	req.Authorization = r.Header.Get("Authorization")

	f.mutex.Lock()
	f.requests = append(f.requests, req)
	f.mutex.Unlock()

	status, body := f.handler(req)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func newTestClient(t *testing.T, handler func(req *recordedRequest) (int, string)) (*Client, *fakeSubgraph) {
	t.Helper()

	fake := &fakeSubgraph{handler: handler}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	registry, err := NewDefaultQueryRegistry()
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	client, err := NewClient(NetworkSourceName, server.URL, "test-api-key", 5*time.Second, registry, logger)
	require.NoError(t, err)

	return client, fake
}

func TestDefaultQueryRegistry(t *testing.T) {
	registry, err := NewDefaultQueryRegistry()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"DisputeManager",
		"EscrowAccount",
		"GraphNetwork",
		"Indexer",
		"IndexerDailyData",
		"IndexerList",
		"SubgraphService",
	}, registry.Names())

	query, err := registry.Get("IndexerList")
	require.NoError(t, err)
	assert.Equal(t, []QueryVariable{
		{Name: "first", Type: "Int!", Required: true},
		{Name: "skip", Type: "Int!", Required: true},
	}, query.Variables)

	_, err = registry.Get("Unknown")
	assert.Error(t, err)
}

func TestQueryRegistryVariables(t *testing.T) {
	fsys := fstest.MapFS{
		"queries/Test.graphql": &fstest.MapFile{Data: []byte(`query Test($id: String!, $first: Int = 10, $skip: Int) { items(first: $first) { id } }`)},
	}
	registry, err := NewQueryRegistry(fsys, "queries")
	require.NoError(t, err)

	query, err := registry.Get("Test")
	require.NoError(t, err)

	assert.NoError(t, query.CheckVariables(map[string]interface{}{"id": "0x1"}))
	assert.NoError(t, query.CheckVariables(map[string]interface{}{"id": "0x1", "first": 5, "skip": 0}))
	assert.Error(t, query.CheckVariables(nil), "missing non-null variable")
	assert.Error(t, query.CheckVariables(map[string]interface{}{"id": nil}), "null for non-null variable")
	assert.Error(t, query.CheckVariables(map[string]interface{}{"id": "0x1", "other": 1}), "undeclared variable")
}

func TestQueryRegistryInvalid(t *testing.T) {
	_, err := NewQueryRegistry(fstest.MapFS{
		"queries/Broken.graphql": &fstest.MapFile{Data: []byte(`query Broken { items { id }`)},
	}, "queries")
	assert.Error(t, err)

	_, err = NewQueryRegistry(fstest.MapFS{
		"queries/Two.graphql": &fstest.MapFile{Data: []byte(`query A { a } query B { b }`)},
	}, "queries")
	assert.Error(t, err)

	_, err = NewQueryRegistry(fstest.MapFS{
		"queries/Mutation.graphql": &fstest.MapFile{Data: []byte(`mutation M { m }`)},
	}, "queries")
	assert.Error(t, err)
}

func TestClientFailureModes(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		message    string
		statusCode int
	}{
		{name: "non 2xx status", status: http.StatusBadGateway, body: `bad gateway`, message: "unexpected status", statusCode: http.StatusBadGateway},
		{name: "graphql errors", status: http.StatusOK, body: `{"errors":[{"message":"indexing_error"},{"message":"timeout"}]}`, message: "graphql errors: indexing_error, timeout", statusCode: http.StatusOK},
		{name: "missing data", status: http.StatusOK, body: `{}`, message: "no data returned", statusCode: http.StatusOK},
		{name: "null data", status: http.StatusOK, body: `{"data":null}`, message: "no data returned", statusCode: http.StatusOK},
		{name: "invalid json", status: http.StatusOK, body: `{"data":`, message: "error parsing json response", statusCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(req *recordedRequest) (int, string) {
				return tt.status, tt.body
			})

			err := client.Query(context.Background(), "GraphNetwork", nil, &graphNetworkResponse{})
			require.Error(t, err)

			var queryErr *QueryError
			require.True(t, errors.As(err, &queryErr))
			assert.Equal(t, NetworkSourceName, queryErr.Source)
			assert.Equal(t, "GraphNetwork", queryErr.Query)
			assert.Equal(t, tt.statusCode, queryErr.StatusCode)
			assert.Contains(t, queryErr.Message, tt.message)
		})
	}
}

func TestClientTransportError(t *testing.T) {
	registry, err := NewDefaultQueryRegistry()
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()

	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	client, err := NewClient(NetworkSourceName, endpoint, "", time.Second, registry, logger)
	require.NoError(t, err)

	err = client.Query(context.Background(), "GraphNetwork", nil, nil)
	var queryErr *QueryError
	require.True(t, errors.As(err, &queryErr))
	assert.Equal(t, "request failed", queryErr.Message)
	assert.NotNil(t, queryErr.Err)
}

func TestClientMissingVariables(t *testing.T) {
	client, fake := newTestClient(t, func(req *recordedRequest) (int, string) {
		return http.StatusOK, `{"data":{}}`
	})

	err := client.Query(context.Background(), "Indexer", map[string]interface{}{"id": "0x1"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataService")
	assert.Empty(t, fake.requests, "invalid queries must not be sent")
}

func TestGetGraphNetwork(t *testing.T) {
	client, fake := newTestClient(t, func(req *recordedRequest) (int, string) {
		return http.StatusOK, `{"data":{"graphNetworks":[{"id":"1","maxThawingPeriod":"2419200"}]}}`
	})
	logger, _ := test.NewNullLogger()

	res, err := NewNetworkSubgraph(client, "", 0, logger).GetGraphNetwork(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2419200", res.MaxThawingPeriod.String())

	require.Len(t, fake.requests, 1)
	assert.Equal(t, "Bearer test-api-key", fake.requests[0].Authorization)
	assert.Contains(t, fake.requests[0].Query, "query GraphNetwork")
}

func TestGetGraphNetworkNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(req *recordedRequest) (int, string) {
		return http.StatusOK, `{"data":{"graphNetworks":[]}}`
	})
	logger, _ := test.NewNullLogger()

	_, err := NewNetworkSubgraph(client, "", 0, logger).GetGraphNetwork(context.Background())
	var queryErr *QueryError
	require.True(t, errors.As(err, &queryErr))
	assert.Equal(t, "graph network not found", queryErr.Message)
}

func TestGetSubgraphService(t *testing.T) {
	client, fake := newTestClient(t, func(req *recordedRequest) (int, string) {
		return http.StatusOK, `{"data":{
			"dataServices":[{"minimumProvisionTokens":"100000","maximumProvisionTokens":"115792089237316195423570985008687907853269984665640564039457584007913129639935","maximumVerifierCut":"1000000","maxPOIStaleness":"2419200","delegationRatio":"16","stakeToFeesRatio":"5","curationCut":"100000"}],
			"graphNetworks":[{"disputePeriod":"2419200","fishermanRewardCut":"500000"}]
		}}`
	})
	logger, _ := test.NewNullLogger()

	res, err := NewNetworkSubgraph(client, "0xB2Bb92d0DE618878E438b55D5846cfecD9301105", 0, logger).GetSubgraphService(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "0xb2bb92d0de618878e438b55d5846cfecd9301105", fake.requests[0].Variables["dataService"])
	assert.Equal(t, "500000", res.MinimumVerifierCut.String())
	assert.Equal(t, "1000000", res.MaximumVerifierCut.String())
	assert.Equal(t, "2419200", res.MinimumThawingPeriod.String())
	assert.Equal(t, "2419200", res.MaximumThawingPeriod.String())
	assert.Equal(t, 256, res.MaximumProvisionTokens.BitLen())
}

func TestGetIndexer(t *testing.T) {
	tests := []struct {
		name       string
		provisions string
		legacy     string
		idle       string
		allocated  string
		thawing    string
		provision  string
	}{
		{
			name:       "with provision",
			provisions: `[{"id":"p1","tokensProvisioned":"400","tokensAllocated":"350","tokensThawing":"20"}]`,
			legacy:     "70",  // 420 - 350
			idle:       "500", // 1000 - 70 - 30 - 400
			allocated:  "350",
			thawing:    "20",
			provision:  "400",
		},
		{
			name:       "without provision",
			provisions: `[]`,
			legacy:     "420",
			idle:       "150",
			allocated:  "0",
			thawing:    "0",
			provision:  "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, fake := newTestClient(t, func(req *recordedRequest) (int, string) {
				return http.StatusOK, `{"data":{"indexers":[{
					"id":"0xABCDEF0123456789abcdef0123456789abcdef01","url":"https://indexer.example.com/","geoHash":"u4pruydqqvj",
					"rewardsDestination":null,"stakedTokens":"1000","delegatedTokens":"300","provisionedTokens":"400",
					"allocatedTokens":"420","lockedTokens":"30","tokenCapacity":"50"
				}],"provisions":` + tt.provisions + `}}`
			})
			logger, _ := test.NewNullLogger()

			res, err := NewNetworkSubgraph(client, "0xb2bb92d0de618878e438b55d5846cfecd9301105", 0, logger).
				GetIndexer(context.Background(), "0xABCDEF0123456789abcdef0123456789abcdef01")
			require.NoError(t, err)

			assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", fake.requests[0].Variables["id"])
			assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", res.ID)
			assert.Equal(t, "", res.RewardsDestination)
			assert.Equal(t, "1000", res.StakedTokens.String())
			assert.Equal(t, "0", res.DelegatedThawingTokens.String())
			assert.Equal(t, "400", res.TotalProvisionedTokens.String())
			assert.Equal(t, tt.legacy, res.LegacyTokensAllocated.String())
			assert.Equal(t, "30", res.TokensLocked.String())
			assert.Equal(t, tt.idle, res.IdleTokens.String())
			assert.Equal(t, "50", res.AvailableTokens.String())
			assert.Equal(t, tt.provision, res.ProvisionedTokens.String())
			assert.Equal(t, tt.allocated, res.AllocatedTokens.String())
			assert.Equal(t, "0", res.FeesProvisionedTokens.String())
			assert.Equal(t, tt.thawing, res.ThawingTokens.String())
		})
	}
}

func TestGetIndexerList(t *testing.T) {
	client, fake := newTestClient(t, func(req *recordedRequest) (int, string) {
		switch req.Variables["skip"] {
		case float64(0):
			return http.StatusOK, `{"data":{
				"indexers":[
					{"id":"0xAAAA000000000000000000000000000000000001","url":"https://a.example.com","stakedTokens":"100","allocations":[{"createdAt":1700000000}]},
					{"id":"0xaaaa000000000000000000000000000000000002","url":null,"stakedTokens":"50","allocations":[]}
				],
				"provisions":[{"indexer":{"id":"0xAAAA000000000000000000000000000000000001"},"tokensProvisioned":"40","tokensAllocated":"0","tokensThawing":"0"}]
			}}`
		default:
			return http.StatusOK, `{"data":{
				"indexers":[{"id":"0xaaaa000000000000000000000000000000000003","url":"","stakedTokens":"1","allocations":[]}],
				"provisions":[]
			}}`
		}
	})
	logger, _ := test.NewNullLogger()

	list, err := NewNetworkSubgraph(client, "", 2, logger).GetIndexerList(context.Background())
	require.NoError(t, err)

	require.Len(t, fake.requests, 2)
	assert.Equal(t, float64(2), fake.requests[1].Variables["skip"])

	require.Len(t, list.Indexers, 3)
	assert.Equal(t, "0xaaaa000000000000000000000000000000000001", list.Indexers[0].ID)
	assert.Equal(t, int64(1700000000), list.Indexers[0].Allocations[0].CreatedAt)
	assert.Equal(t, "", list.Indexers[1].Url)
	require.Len(t, list.Provisions, 1)
	assert.Equal(t, "0xaaaa000000000000000000000000000000000001", list.Provisions[0].IndexerID)
	assert.Equal(t, "40", list.Provisions[0].TokensProvisioned.String())
}

func TestGetEscrowAccount(t *testing.T) {
	client, _ := newTestClient(t, func(req *recordedRequest) (int, string) {
		if req.Variables["receiver"] == "0x0000000000000000000000000000000000000002" {
			return http.StatusOK, `{"data":{"paymentsEscrowAccounts":[]}}`
		}
		return http.StatusOK, `{"data":{"paymentsEscrowAccounts":[{"balance":"1000","totalAmountThawing":"10","thawEndTimestamp":"0"}]}}`
	})
	logger, _ := test.NewNullLogger()
	source := NewNetworkSubgraph(client, "", 0, logger)

	account, err := source.GetEscrowAccount(context.Background(), "0xPAYER", "0xCOLLECTOR", "0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "0xpayer", account.Payer)
	assert.Equal(t, "1000", account.Balance.String())
	assert.Equal(t, "10", account.TokensThawing.String())

	account, err = source.GetEscrowAccount(context.Background(), "0xpayer", "0xcollector", "0x0000000000000000000000000000000000000002")
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestGetIndexerDailyData(t *testing.T) {
	client, fake := newTestClient(t, func(req *recordedRequest) (int, string) {
		if req.Variables["skip"] == float64(0) {
			return http.StatusOK, `{"data":{"indexerDailyDataPoints":[
				{"indexer":{"id":"0xAAAA000000000000000000000000000000000001"},"dayStart":"1760000000","query_count":"1000"},
				{"indexer":{"id":"0xaaaa000000000000000000000000000000000002"},"dayStart":"1760000000","query_count":"500"}
			]}}`
		}
		return http.StatusOK, `{"data":{"indexerDailyDataPoints":[]}}`
	})
	logger, _ := test.NewNullLogger()

	points, err := NewQoSSubgraph(client, 2, logger).GetIndexerDailyData(context.Background(), 1759000000)
	require.NoError(t, err)

	require.Len(t, fake.requests, 2)
	assert.Equal(t, "1759000000", fake.requests[0].Variables["dayStart_gt"])
	require.Len(t, points, 2)
	assert.Equal(t, "0xaaaa000000000000000000000000000000000001", points[0].IndexerID)
	assert.Equal(t, int64(1760000000), points[0].DayStart)
	assert.Equal(t, "1000", points[0].QueryCount.String())
}

func TestBigIntDecoding(t *testing.T) {
	var values struct {
		A BigInt `json:"a"`
		B BigInt `json:"b"`
		C BigInt `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"123456789012345678901234567890","b":42,"c":null}`), &values))
	assert.Equal(t, "123456789012345678901234567890", values.A.Big().String())
	assert.Equal(t, "42", values.B.Big().String())
	assert.Equal(t, "0", values.C.Big().String())

	assert.Error(t, json.Unmarshal([]byte(`{"a":"abc"}`), &values))
}

func TestClientRateLimiter(t *testing.T) {
	client, fake := newTestClient(t, func(req *recordedRequest) (int, string) {
		return http.StatusOK, `{"data":{"graphNetworks":[]}}`
	})
	client.SetRateLimiter(NewCallRateLimiter(0.001, 1))

	err := client.Query(context.Background(), "GraphNetwork", nil, &struct{}{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = client.Query(ctx, "GraphNetwork", nil, &struct{}{})
	var queryErr *QueryError
	require.True(t, errors.As(err, &queryErr))
	assert.Equal(t, "rate limit wait aborted", queryErr.Message)
	assert.Len(t, fake.requests, 1)
}

func TestNewCallRateLimiterDisabled(t *testing.T) {
	assert.Nil(t, NewCallRateLimiter(0, 10))

	var limiter *CallRateLimiter
	assert.NoError(t, limiter.Wait(context.Background(), NetworkSourceName))
}
