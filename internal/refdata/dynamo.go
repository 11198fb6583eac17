package refdata

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// GetItemAPI is the part of the DynamoDB client the lookup needs
type GetItemAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

type securityItem struct {
	Symbol         string   `dynamodbav:"Symbol"`
	TradingEnabled bool     `dynamodbav:"TradingEnabled"`
	Risk           riskItem `dynamodbav:"Risk"`
}

type riskItem struct {
	RiskFactor  float64    `dynamodbav:"RiskFactor"`
	MaxPosition int64      `dynamodbav:"MaxPosition"`
	Margin      marginItem `dynamodbav:"Margin"`
}

type marginItem struct {
	Amount   float64 `dynamodbav:"Amount"`
	Currency string  `dynamodbav:"Currency"`
}

// DynamoLookup reads security profiles from a table keyed by Symbol
type DynamoLookup struct {
	client    GetItemAPI
	tableName string
}

// NewDynamoLookup creates a lookup over tableName
func NewDynamoLookup(client GetItemAPI, tableName string) *DynamoLookup {
	return &DynamoLookup{client: client, tableName: tableName}
}

// Security fetches the profile for symbol
func (d *DynamoLookup) Security(ctx context.Context, symbol string) (*SecurityProfile, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"Symbol": &types.AttributeValueMemberS{Value: symbol},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get security %s: %w: %w", symbol, ErrUnavailable, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item securityItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal security %s: %w", symbol, err)
	}
	if item.Symbol != symbol {
		return nil, nil
	}

	return &SecurityProfile{
		Symbol:         item.Symbol,
		TradingEnabled: item.TradingEnabled,
		RiskFactor:     decimal.NewFromFloat(item.Risk.RiskFactor),
		MarginAmount:   decimal.NewFromFloat(item.Risk.Margin.Amount),
		MarginCurrency: item.Risk.Margin.Currency,
		MaxPosition:    item.Risk.MaxPosition,
	}, nil
}
