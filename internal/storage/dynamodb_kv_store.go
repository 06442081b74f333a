package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI is the subset of the DynamoDB client used by DynamoDBKVStore.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
}

// kvItem is the DynamoDB item layout: a string hash key "key" and a
// string attribute "value".
type kvItem struct {
	Key   string `dynamodbav:"key"`
	Value string `dynamodbav:"value"`
}

// DynamoDBKVStore implements KVStore on a DynamoDB table.
type DynamoDBKVStore struct {
	client    DynamoDBAPI
	tableName string
}

// NewDynamoDBKVStore returns a store using an existing client.
func NewDynamoDBKVStore(client DynamoDBAPI, tableName string) *DynamoDBKVStore {
	return &DynamoDBKVStore{client: client, tableName: tableName}
}

// OpenDynamoDBKVStore builds a client from the default AWS credential chain.
// A non-empty endpoint overrides the service endpoint (DynamoDB Local).
func OpenDynamoDBKVStore(ctx context.Context, tableName, endpoint string) (*DynamoDBKVStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	client := sdk.NewFromConfig(cfg, func(o *sdk.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewDynamoDBKVStore(client, tableName), nil
}

// Put writes the item unconditionally.
func (d *DynamoDBKVStore) Put(ctx context.Context, key, value string) error {
	item, err := attributevalue.MarshalMap(kvItem{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("marshaling item %q: %w", key, err)
	}
	_, err = d.client.PutItem(ctx, &sdk.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("putting key %q: %w", key, err)
	}
	return nil
}

// Get performs a strongly consistent read.
func (d *DynamoDBKVStore) Get(ctx context.Context, key string) (string, error) {
	out, err := d.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            map[string]types.AttributeValue{"key": &types.AttributeValueMemberS{Value: key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("getting key %q: %w", key, err)
	}
	if len(out.Item) == 0 {
		return "", ErrNotFound
	}
	var item kvItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return "", fmt.Errorf("unmarshaling item %q: %w", key, err)
	}
	return item.Value, nil
}

// Update is a compare-and-swap loop using conditional puts.
func (d *DynamoDBKVStore) Update(ctx context.Context, key string, fn UpdateFunc) (string, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		old, err := d.Get(ctx, key)
		exists := true
		if errors.Is(err, ErrNotFound) {
			exists = false
		} else if err != nil {
			return "", err
		}

		next, err := fn(old, exists)
		if err != nil {
			return "", err
		}

		item, err := attributevalue.MarshalMap(kvItem{Key: key, Value: next})
		if err != nil {
			return "", fmt.Errorf("marshaling item %q: %w", key, err)
		}
		input := &sdk.PutItemInput{
			TableName: aws.String(d.tableName),
			Item:      item,
		}
		if exists {
			input.ConditionExpression = aws.String("#v = :old")
			input.ExpressionAttributeNames = map[string]string{"#v": "value"}
			input.ExpressionAttributeValues = map[string]types.AttributeValue{
				":old": &types.AttributeValueMemberS{Value: old},
			}
		} else {
			input.ConditionExpression = aws.String("attribute_not_exists(#k)")
			input.ExpressionAttributeNames = map[string]string{"#k": "key"}
		}

		_, err = d.client.PutItem(ctx, input)
		if err == nil {
			return next, nil
		}
		var condErr *types.ConditionalCheckFailedException
		if !errors.As(err, &condErr) {
			return "", fmt.Errorf("updating key %q: %w", key, err)
		}
	}
	return "", fmt.Errorf("updating key %q: %w", key, ErrUpdateContention)
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (d *DynamoDBKVStore) Close() error {
	return nil
}
