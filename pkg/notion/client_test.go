package notion

import (
	"context"
	"errors"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func TestQueryAll_SinglePage(t *testing.T) {
	m := &MockClient{}
	m.On("QueryDatabase", mock.Anything, "db-1", mock.Anything).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{ID: "page-1"}, {ID: "page-2"}},
		HasMore: false,
	}, nil)

	pages, err := QueryAll(context.Background(), m, "db-1", nil)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, notionapi.ObjectID("page-1"), pages[0].ID)
	m.AssertNumberOfCalls(t, "QueryDatabase", 1)
}

func TestQueryAll_Paginates(t *testing.T) {
	m := &MockClient{}
	m.On("QueryDatabase", mock.Anything, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == ""
	})).Return(&notionapi.DatabaseQueryResponse{
		Results:    []notionapi.Page{{ID: "page-1"}},
		HasMore:    true,
		NextCursor: notionapi.Cursor("cursor-2"),
	}, nil).Once()
	m.On("QueryDatabase", mock.Anything, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == notionapi.Cursor("cursor-2")
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{ID: "page-2"}},
		HasMore: false,
	}, nil).Once()

	pages, err := QueryAll(context.Background(), m, "db-1", nil)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	m.AssertExpectations(t)
}

func TestQueryAll_Error(t *testing.T) {
	m := &MockClient{}
	m.On("QueryDatabase", mock.Anything, "db-1", mock.Anything).Return(nil, errors.New("rate limited"))

	_, err := QueryAll(context.Background(), m, "db-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query all page")
}

func TestNewClient_RateLimitOption(t *testing.T) {
	c := NewClient("secret-token", WithRateLimit(10))
	nc := c.(*notionClient)
	assert.NotNil(t, nc.limiter)
	assert.InDelta(t, 10, float64(nc.limiter.Limit()), 0.001)

	c = NewClient("secret-token", WithRateLimit(0))
	nc = c.(*notionClient)
	assert.Nil(t, nc.limiter)
}
