package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ismaiel54/futures-fix-trader/internal/order"
)

// DynamoAPI is the part of the DynamoDB client the ledger needs
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type orderItem struct {
	NewOrderID      string       `dynamodbav:"NewOrderId"`
	TransactionTime string       `dynamodbav:"TransactionTime"`
	Status          string       `dynamodbav:"Status"`
	Details         orderDetails `dynamodbav:"Details"`
}

type orderDetails struct {
	Symbol   string `dynamodbav:"Symbol"`
	Maturity string `dynamodbav:"Maturity"`
	Quantity int64  `dynamodbav:"Quantity"`
	Side     string `dynamodbav:"Side"`
	OrdType  string `dynamodbav:"OrdType"`
}

// DynamoLedger keeps intents in an Orders table keyed by NewOrderId and TransactionTime
type DynamoLedger struct {
	client    DynamoAPI
	tableName string
}

// NewDynamoLedger creates a ledger over tableName
func NewDynamoLedger(client DynamoAPI, tableName string) *DynamoLedger {
	return &DynamoLedger{client: client, tableName: tableName}
}

// Claim writes intent as PENDING unless it already exists
func (d *DynamoLedger) Claim(ctx context.Context, intent order.Intent) error {
	item, err := attributevalue.MarshalMap(orderItem{
		NewOrderID:      intent.ID,
		TransactionTime: intent.SubmittedAt,
		Status:          string(StatusPending),
		Details: orderDetails{
			Symbol:   intent.Symbol,
			Maturity: intent.Maturity,
			Quantity: intent.Quantity,
			Side:     intent.Side,
			OrdType:  intent.OrdType,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal intent %s: %w", intent.ID, err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("NewOrderId"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build condition expression: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(d.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return fmt.Errorf("intent %s: %w", intent.ID, ErrAlreadyClaimed)
		}
		return fmt.Errorf("failed to claim intent %s: %w", intent.ID, err)
	}
	return nil
}

// UpdateStatus sets Status, ClientOrderId and StatusText while Status is PENDING
func (d *DynamoLedger) UpdateStatus(ctx context.Context, u Update) error {
	update := expression.Set(expression.Name("Status"), expression.Value(string(u.Status))).
		Set(expression.Name("ClientOrderId"), expression.Value(u.ClOrdID)).
		Set(expression.Name("StatusText"), expression.Value(u.Text))
	cond := expression.Name("Status").Equal(expression.Value(string(StatusPending))).
		And(expression.Name("NewOrderId").Equal(expression.Value(u.IntentID)))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("%w: failed to build update expression: %w", ErrUpdateFailed, err)
	}

	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"NewOrderId":      &types.AttributeValueMemberS{Value: u.IntentID},
			"TransactionTime": &types.AttributeValueMemberS{Value: u.SubmittedAt},
		},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return fmt.Errorf("%w: intent %s: %w", ErrUpdateFailed, u.IntentID, ErrNotPending)
		}
		return fmt.Errorf("%w: failed to update intent %s: %w", ErrUpdateFailed, u.IntentID, err)
	}
	return nil
}
