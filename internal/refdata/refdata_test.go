package refdata

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/config"
)

func TestStatic(t *testing.T) {
	lookup := FromConfig([]config.SecurityConfig{{
		Symbol:         "6E",
		TradingEnabled: true,
		RiskFactor:     0.5,
		MarginAmount:   100,
		MarginCurrency: "usd",
		MaxPosition:    5,
	}})

	p, err := lookup.Security(context.Background(), "6E")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.RiskFactor.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, "USD", p.MarginCurrency)

	p, err = lookup.Security(context.Background(), "ES")
	require.NoError(t, err)
	assert.Nil(t, p)
}

type fakeGetItem struct {
	items map[string]map[string]types.AttributeValue
	err   error
	table string
}

func (f *fakeGetItem) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.table = aws.ToString(in.TableName)
	symbol := in.Key["Symbol"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[symbol]}, nil
}

func TestDynamoLookup(t *testing.T) {
	fake := &fakeGetItem{items: map[string]map[string]types.AttributeValue{
		"6E": {
			"Symbol":         &types.AttributeValueMemberS{Value: "6E"},
			"TradingEnabled": &types.AttributeValueMemberBOOL{Value: true},
			"Risk": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
				"RiskFactor":  &types.AttributeValueMemberN{Value: "0.5"},
				"MaxPosition": &types.AttributeValueMemberN{Value: "5"},
				"Margin": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
					"Amount":   &types.AttributeValueMemberN{Value: "100"},
					"Currency": &types.AttributeValueMemberS{Value: "USD"},
				}},
			}},
		},
	}}
	lookup := NewDynamoLookup(fake, "Securities")

	p, err := lookup.Security(context.Background(), "6E")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Securities", fake.table)
	assert.True(t, p.TradingEnabled)
	assert.Equal(t, int64(5), p.MaxPosition)
	assert.True(t, p.MarginAmount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "USD", p.MarginCurrency)

	p, err = lookup.Security(context.Background(), "ZN")
	require.NoError(t, err)
	assert.Nil(t, p)

	fake.err = errors.New("throttled")
	_, err = lookup.Security(context.Background(), "6E")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCachedLookup_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if os.Getenv("INTEGRATION") != "1" || addr == "" {
		t.Skip("Skipping integration test (set INTEGRATION=1 and REDIS_ADDR to run)")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	source := NewStatic(SecurityProfile{Symbol: "6E", TradingEnabled: true, MaxPosition: 5})
	cached := NewCachedLookup(source, client, time.Minute, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, cached.Invalidate(ctx, "6E"))

	p, err := cached.Security(ctx, "6E")
	require.NoError(t, err)
	require.NotNil(t, p)

	source.Put(SecurityProfile{Symbol: "6E", TradingEnabled: false})
	p, err = cached.Security(ctx, "6E")
	require.NoError(t, err)
	assert.True(t, p.TradingEnabled, "served from cache")

	require.NoError(t, cached.Invalidate(ctx, "6E"))
	p, err = cached.Security(ctx, "6E")
	require.NoError(t, err)
	assert.False(t, p.TradingEnabled)
}
