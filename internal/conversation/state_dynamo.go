package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStateStore keeps state in a DynamoDB table keyed by conversationId
// (number). Writes are conditioned on the version read, so a concurrent
// writer forces a re-read and retry.
type DynamoStateStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
	logger    *logging.Logger
}

// NewDynamoStateStore builds a store backed by the provided DynamoDB client.
func NewDynamoStateStore(client dynamoAPI, tableName string, ttl time.Duration, logger *logging.Logger) *DynamoStateStore {
	if client == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("conversation: table name cannot be empty")
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStateStore{client: client, tableName: tableName, ttl: ttl, logger: logger}
}

func dynamoStateKey(conversationID int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"conversationId": &types.AttributeValueMemberN{Value: strconv.FormatInt(conversationID, 10)},
	}
}

func (s *DynamoStateStore) Get(ctx context.Context, conversationID int64) (*State, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            dynamoStateKey(conversationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to load state: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var st State
	if err := attributevalue.UnmarshalMap(out.Item, &st); err != nil {
		return nil, fmt.Errorf("conversation: failed to decode state: %w", err)
	}
	return &st, nil
}

func (s *DynamoStateStore) Update(ctx context.Context, conversationID int64, fn UpdateFunc) (*State, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		cur, err := s.Get(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		next, err := fn(cur)
		if err != nil {
			return nil, err
		}
		if next != nil && next == cur {
			return cur, nil
		}

		if next == nil {
			if cur == nil {
				return nil, nil
			}
			err = s.deleteAtVersion(ctx, conversationID, cur.Version)
		} else {
			expected := int64(0)
			if cur != nil {
				expected = cur.Version
			}
			next.ConversationID = conversationID
			next.Version = expected + 1
			err = s.put(ctx, next, cur != nil, expected)
		}
		if err == nil {
			if next == nil {
				return nil, nil
			}
			out := *next
			return &out, nil
		}
		if !isConditionalFailure(err) {
			return nil, err
		}
		s.logger.Debug("conversation state write lost race, retrying",
			"conversation_id", conversationID, "attempt", attempt+1)
	}
	return nil, ErrStateConflict
}

func (s *DynamoStateStore) put(ctx context.Context, st *State, exists bool, expected int64) error {
	item, err := attributevalue.MarshalMap(st)
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	item["expiresAt"] = &types.AttributeValueMemberN{
		Value: strconv.FormatInt(time.Now().Add(s.ttl).Unix(), 10),
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}
	if exists {
		input.ConditionExpression = aws.String("#v = :expected")
		input.ExpressionAttributeNames = map[string]string{"#v": "version"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		}
	} else {
		input.ConditionExpression = aws.String("attribute_not_exists(conversationId)")
	}
	if _, err := s.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return nil
}

func (s *DynamoStateStore) deleteAtVersion(ctx context.Context, conversationID, version int64) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      dynamoStateKey(conversationID),
		ConditionExpression:      aws.String("#v = :expected"),
		ExpressionAttributeNames: map[string]string{"#v": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("conversation: failed to delete state: %w", err)
	}
	return nil
}

func (s *DynamoStateStore) Delete(ctx context.Context, conversationID int64) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       dynamoStateKey(conversationID),
	})
	if err != nil {
		return fmt.Errorf("conversation: failed to delete state: %w", err)
	}
	return nil
}

func isConditionalFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
