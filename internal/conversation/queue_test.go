package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/mortgage-ai-platform/internal/chatwoot"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

type stubQueue struct {
	mu      sync.Mutex
	sent    []string
	attrs   []JobAttributes
	sendErr error
}

func (s *stubQueue) Send(_ context.Context, body string, attrs JobAttributes) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, body)
	s.attrs = append(s.attrs, attrs)
	return nil
}

func (s *stubQueue) Receive(context.Context, int, int) ([]queueMessage, error) {
	return nil, context.Canceled
}

func (s *stubQueue) Delete(context.Context, string) error { return nil }

func messageEvent(convID, msgID int64, content string) *chatwoot.Event {
	return &chatwoot.Event{
		Type: chatwoot.EventMessageCreated,
		Conversation: chatwoot.Conversation{
			ID:     convID,
			Status: chatwoot.StatusOpen,
			Meta:   chatwoot.ConversationMeta{Sender: &chatwoot.Sender{ID: 77, Name: "Daniel Koh", Type: chatwoot.SenderContact}},
		},
		Message: &chatwoot.Message{
			ID:          msgID,
			Content:     content,
			MessageType: chatwoot.MessageIncoming,
			Sender:      &chatwoot.Sender{ID: 77, Name: "Daniel Koh", Type: chatwoot.SenderContact},
		},
	}
}

func TestPublisher_Enqueue(t *testing.T) {
	queue := &stubQueue{}
	pub := NewPublisher(queue, logging.Discard())

	jobID, err := pub.Enqueue(context.Background(), messageEvent(912, 4812, "hello"))
	require.NoError(t, err)
	require.NotEmpty(t, jobID)
	require.Len(t, queue.sent, 1)

	payload, err := decodePayload(queue.sent[0])
	require.NoError(t, err)
	assert.Equal(t, jobID, payload.ID)
	assert.Equal(t, jobTypeChatwootEvent, payload.Kind)
	assert.False(t, payload.ReceivedAt.IsZero())
	assert.Equal(t, int64(912), payload.Event.ConversationID())
	assert.Equal(t, "hello", payload.Event.Message.Content)
	assert.Equal(t, JobAttributes{JobID: jobID, EventType: "message_created", ConversationID: 912}, queue.attrs[0])
}

func TestPublisher_EnqueueErrors(t *testing.T) {
	pub := NewPublisher(&stubQueue{sendErr: ErrQueueFull}, logging.Discard())
	_, err := pub.Enqueue(context.Background(), messageEvent(1, 1, "hi"))
	require.ErrorIs(t, err, ErrQueueFull)

	_, err = pub.Enqueue(context.Background(), nil)
	require.Error(t, err)
}

func TestDecodePayload_Rejects(t *testing.T) {
	for name, body := range map[string]string{
		"not json":     "{",
		"unknown kind": `{"id":"j1","kind":"conversation.start.v1","event":{"event":"message_created"}}`,
		"no event":     `{"id":"j1","kind":"chatwoot_event.v1"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodePayload(body)
			require.Error(t, err)
		})
	}
}

func TestMemoryQueue_SendReceive(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "a", JobAttributes{JobID: "j-a", ConversationID: 1}))
	require.NoError(t, q.Send(ctx, "b", JobAttributes{}))
	require.ErrorIs(t, q.Send(ctx, "c", JobAttributes{}), ErrQueueFull)
	assert.Equal(t, 2, q.Len())

	msgs, err := q.Receive(ctx, 5, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Body)
	assert.Equal(t, "b", msgs[1].Body)
	assert.NotEmpty(t, msgs[0].ReceiptHandle)
	assert.Equal(t, 0, q.Len())
}

func TestMemoryQueue_ReceiveTimesOutAndCancels(t *testing.T) {
	q := NewMemoryQueue(1)

	msgs, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = q.Receive(ctx, 1, 0)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, q.Send(ctx, "x", JobAttributes{}), context.Canceled)
}

type fakeSQS struct {
	sendInput    *sqs.SendMessageInput
	receiveInput *sqs.ReceiveMessageInput
	deleted      []string
	messages     []sqstypes.Message
	err          error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sendInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.receiveInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueue(t *testing.T) {
	attrs := JobAttributes{JobID: "job-1", EventType: "message_created", ConversationID: 912}
	api := &fakeSQS{messages: []sqstypes.Message{
		{
			MessageId:         aws.String("m-1"),
			Body:              aws.String("payload"),
			ReceiptHandle:     aws.String("rh-1"),
			MessageAttributes: encodeJobAttributes(attrs),
		},
	}}
	q := NewSQSQueue(api, "https://sqs.ap-southeast-1.amazonaws.com/123/chat")
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "payload", attrs))
	assert.Equal(t, "payload", aws.ToString(api.sendInput.MessageBody))
	require.Contains(t, api.sendInput.MessageAttributes, sqsAttrConversationID)
	assert.Equal(t, "Number", aws.ToString(api.sendInput.MessageAttributes[sqsAttrConversationID].DataType))
	assert.Equal(t, "912", aws.ToString(api.sendInput.MessageAttributes[sqsAttrConversationID].StringValue))
	assert.Equal(t, "job-1", aws.ToString(api.sendInput.MessageAttributes[sqsAttrJobID].StringValue))

	msgs, err := q.Receive(ctx, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(5), api.receiveInput.MaxNumberOfMessages)
	assert.Equal(t, int32(10), api.receiveInput.WaitTimeSeconds)
	assert.ElementsMatch(t, []string{sqsAttrJobID, sqsAttrEventType, sqsAttrConversationID}, api.receiveInput.MessageAttributeNames)
	require.Len(t, msgs, 1)
	assert.Equal(t, queueMessage{ID: "m-1", Body: "payload", ReceiptHandle: "rh-1", Attributes: attrs}, msgs[0])

	require.NoError(t, q.Delete(ctx, "rh-1"))
	require.NoError(t, q.Delete(ctx, ""))
	assert.Equal(t, []string{"rh-1"}, api.deleted)

	api.err = errors.New("throttled")
	require.ErrorContains(t, q.Send(ctx, "x", JobAttributes{}), "throttled")
	_, err = q.Receive(ctx, 1, 0)
	require.Error(t, err)
}

func TestEncodeJobAttributes_OmitsEmpty(t *testing.T) {
	assert.Nil(t, encodeJobAttributes(JobAttributes{}))
	assert.Equal(t, JobAttributes{}, decodeJobAttributes(nil))
}

func TestNewSQSQueue_Validates(t *testing.T) {
	assert.Panics(t, func() { NewSQSQueue(nil, "url") })
	assert.Panics(t, func() { NewSQSQueue(&fakeSQS{}, "") })
}

type recordingHandler struct {
	mu     sync.Mutex
	events []*chatwoot.Event
	err    error
	done   chan struct{}
}

func (h *recordingHandler) Handle(_ context.Context, ev *chatwoot.Event) error {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	if h.done != nil {
		h.done <- struct{}{}
	}
	return h.err
}

type deleteTrackingQueue struct {
	*MemoryQueue
	mu      sync.Mutex
	deleted []string
}

func (q *deleteTrackingQueue) Delete(_ context.Context, handle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, handle)
	return nil
}

func TestWorker_ProcessesQueuedEvents(t *testing.T) {
	queue := NewMemoryQueue(4)
	handler := &recordingHandler{done: make(chan struct{}, 4)}
	pub := NewPublisher(queue, logging.Discard())

	_, err := pub.Enqueue(context.Background(), messageEvent(912, 4812, "hi"))
	require.NoError(t, err)
	_, err = pub.Enqueue(context.Background(), messageEvent(913, 10, "hello"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(handler, queue, logging.Discard(), WithWorkerCount(1), WithReceiveWaitSeconds(1))
	w.Start(ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-handler.done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not process job")
		}
	}
	cancel()
	w.Wait()

	require.Len(t, handler.events, 2)
	assert.ElementsMatch(t, []int64{912, 913}, []int64{handler.events[0].ConversationID(), handler.events[1].ConversationID()})
}

func TestWorker_HandleMessageDeletion(t *testing.T) {
	queue := &deleteTrackingQueue{MemoryQueue: NewMemoryQueue(1)}
	_, body, err := encodePayload(queuePayload{Kind: jobTypeChatwootEvent, Event: messageEvent(1, 2, "hi")})
	require.NoError(t, err)

	ok := &recordingHandler{}
	NewWorker(ok, queue, logging.Discard()).handleMessage(context.Background(), queueMessage{Body: body, ReceiptHandle: "ok"})

	failing := &recordingHandler{err: ErrStateConflict}
	NewWorker(failing, queue, logging.Discard()).handleMessage(context.Background(), queueMessage{Body: body, ReceiptHandle: "retry"})

	NewWorker(ok, queue, logging.Discard()).handleMessage(context.Background(), queueMessage{Body: "garbage", ReceiptHandle: "poison"})

	assert.Equal(t, []string{"ok", "poison"}, queue.deleted, "failed jobs stay queued for redelivery")
	assert.Len(t, ok.events, 1)
	assert.Len(t, failing.events, 1)
}

func TestWorkerOptions(t *testing.T) {
	w := NewWorker(&recordingHandler{}, NewMemoryQueue(1), nil,
		WithWorkerCount(3), WithReceiveWaitSeconds(60), WithReceiveBatchSize(50), WithJobTimeout(time.Second))
	assert.Equal(t, 3, w.cfg.workers)
	assert.Equal(t, maxWaitSeconds, w.cfg.receiveWaitSecs)
	assert.Equal(t, maxReceiveBatchSize, w.cfg.receiveBatchSize)
	assert.Equal(t, time.Second, w.cfg.jobTimeout)

	assert.Panics(t, func() { NewWorker(nil, NewMemoryQueue(1), nil) })
	assert.Panics(t, func() { NewWorker(&recordingHandler{}, nil, nil) })
}
