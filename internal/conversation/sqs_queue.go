package conversation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQS message attribute names carried with every job.
const (
	sqsAttrJobID          = "job_id"
	sqsAttrEventType      = "chatwoot_event"
	sqsAttrConversationID = "conversation_id"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue is the JobQueue shared by the API and the conversation workers.
// Job id, event type and conversation id ride along as message attributes.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
}

// NewSQSQueue wraps client for the queue at queueURL.
func NewSQSQueue(client sqsAPI, queueURL string) *SQSQueue {
	if client == nil {
		panic("conversation: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("conversation: SQS queueURL cannot be empty")
	}
	return &SQSQueue{client: client, queueURL: queueURL}
}

func (q *SQSQueue) Send(ctx context.Context, body string, attrs JobAttributes) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(q.queueURL),
		MessageBody:       aws.String(body),
		MessageAttributes: encodeJobAttributes(attrs),
	})
	if err != nil {
		return fmt.Errorf("conversation: send job %s to SQS: %w", attrs.JobID, err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(q.queueURL),
		MaxNumberOfMessages:   int32(maxMessages),
		WaitTimeSeconds:       int32(waitSeconds),
		MessageAttributeNames: []string{sqsAttrJobID, sqsAttrEventType, sqsAttrConversationID},
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: receive SQS jobs: %w", err)
	}

	messages := make([]queueMessage, 0, len(output.Messages))
	for _, msg := range output.Messages {
		messages = append(messages, queueMessage{
			ID:            aws.ToString(msg.MessageId),
			Body:          aws.ToString(msg.Body),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
			Attributes:    decodeJobAttributes(msg.MessageAttributes),
		})
	}
	return messages, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("conversation: delete SQS job: %w", err)
	}
	return nil
}

func encodeJobAttributes(attrs JobAttributes) map[string]sqstypes.MessageAttributeValue {
	out := make(map[string]sqstypes.MessageAttributeValue, 3)
	if attrs.JobID != "" {
		out[sqsAttrJobID] = sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(attrs.JobID)}
	}
	if attrs.EventType != "" {
		out[sqsAttrEventType] = sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(attrs.EventType)}
	}
	if attrs.ConversationID != 0 {
		out[sqsAttrConversationID] = sqstypes.MessageAttributeValue{
			DataType:    aws.String("Number"),
			StringValue: aws.String(strconv.FormatInt(attrs.ConversationID, 10)),
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func decodeJobAttributes(in map[string]sqstypes.MessageAttributeValue) JobAttributes {
	var attrs JobAttributes
	if v, ok := in[sqsAttrJobID]; ok {
		attrs.JobID = aws.ToString(v.StringValue)
	}
	if v, ok := in[sqsAttrEventType]; ok {
		attrs.EventType = aws.ToString(v.StringValue)
	}
	if v, ok := in[sqsAttrConversationID]; ok {
		attrs.ConversationID, _ = strconv.ParseInt(aws.ToString(v.StringValue), 10, 64)
	}
	return attrs
}
