package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	put    *dynamodb.PutItemInput
	update *dynamodb.UpdateItemInput
	err    error
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.put = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.update = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func TestDynamoLedger_Claim(t *testing.T) {
	fake := &fakeDynamo{}
	l := NewDynamoLedger(fake, "Orders")

	require.NoError(t, l.Claim(context.Background(), testIntent("n-1")))
	require.NotNil(t, fake.put)
	assert.Equal(t, "Orders", aws.ToString(fake.put.TableName))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "PENDING"}, fake.put.Item["Status"])
	assert.Contains(t, aws.ToString(fake.put.ConditionExpression), "attribute_not_exists")

	fake.err = &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	err := l.Claim(context.Background(), testIntent("n-1"))
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestDynamoLedger_UpdateStatus(t *testing.T) {
	fake := &fakeDynamo{}
	l := NewDynamoLedger(fake, "Orders")

	err := l.UpdateStatus(context.Background(), Update{
		IntentID:    "n-1",
		SubmittedAt: "1496721144.32",
		Status:      StatusFilled,
		ClOrdID:     "ord-1",
	})
	require.NoError(t, err)

	in := fake.update
	require.NotNil(t, in)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "n-1"}, in.Key["NewOrderId"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "1496721144.32"}, in.Key["TransactionTime"])
	assert.Contains(t, in.ExpressionAttributeValues, ":0")
	assert.NotEmpty(t, aws.ToString(in.ConditionExpression))
	assert.NotEmpty(t, aws.ToString(in.UpdateExpression))

	var pendingGuarded bool
	for _, v := range in.ExpressionAttributeValues {
		if s, ok := v.(*types.AttributeValueMemberS); ok && s.Value == "PENDING" {
			pendingGuarded = true
		}
	}
	assert.True(t, pendingGuarded, "update is conditional on PENDING")

	fake.err = &types.ConditionalCheckFailedException{Message: aws.String("status changed")}
	err = l.UpdateStatus(context.Background(), Update{IntentID: "n-1", Status: StatusInvalid})
	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.ErrorIs(t, err, ErrNotPending)

	fake.err = errors.New("throttled")
	err = l.UpdateStatus(context.Background(), Update{IntentID: "n-1", Status: StatusInvalid})
	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.False(t, errors.Is(err, ErrNotPending))
}
