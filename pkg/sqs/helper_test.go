package sqs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	awssqs "github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DwayneJengSage/Bridge-Reporter/pkg/config"
	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
)

type sqsStub struct {
	sqsiface.SQSAPI

	receiveInput *awssqs.ReceiveMessageInput
	receiveOut   *awssqs.ReceiveMessageOutput
	receiveErr   error
	deleted      []string
	sent         []string
}

func (s *sqsStub) ReceiveMessageWithContext(ctx aws.Context, in *awssqs.ReceiveMessageInput, _ ...request.Option) (*awssqs.ReceiveMessageOutput, error) {
	s.receiveInput = in
	if s.receiveErr != nil {
		return nil, s.receiveErr
	}
	return s.receiveOut, nil
}

func (s *sqsStub) DeleteMessageWithContext(ctx aws.Context, in *awssqs.DeleteMessageInput, _ ...request.Option) (*awssqs.DeleteMessageOutput, error) {
	s.deleted = append(s.deleted, aws.StringValue(in.ReceiptHandle))
	return &awssqs.DeleteMessageOutput{}, nil
}

func (s *sqsStub) SendMessageWithContext(ctx aws.Context, in *awssqs.SendMessageInput, _ ...request.Option) (*awssqs.SendMessageOutput, error) {
	s.sent = append(s.sent, aws.StringValue(in.MessageBody))
	return &awssqs.SendMessageOutput{MessageId: aws.String("msg-new")}, nil
}

func newHelperForTest(stub *sqsStub) *Helper {
	return NewHelper(stub, config.QueueConfig{
		URL:               "https://sqs.us-east-1.amazonaws.com/1234/reporter",
		WaitTime:          60 * time.Second,
		VisibilityTimeout: 5 * time.Minute,
	})
}

func TestReceiveMapsMessagesAndClampsInput(t *testing.T) {
	stub := &sqsStub{receiveOut: &awssqs.ReceiveMessageOutput{Messages: []*awssqs.Message{{
		MessageId:     aws.String("m-1"),
		ReceiptHandle: aws.String("rh-1"),
		Body:          aws.String(`{"scheduler":"s"}`),
		Attributes:    map[string]*string{awssqs.MessageSystemAttributeNameApproximateReceiveCount: aws.String("3")},
	}}}}
	helper := newHelperForTest(stub)

	msgs, err := helper.Receive(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, Message{ID: "m-1", ReceiptHandle: "rh-1", Body: `{"scheduler":"s"}`, ReceiveCount: "3"}, msgs[0])

	assert.Equal(t, int64(10), aws.Int64Value(stub.receiveInput.MaxNumberOfMessages))
	assert.Equal(t, int64(20), aws.Int64Value(stub.receiveInput.WaitTimeSeconds))
	assert.Equal(t, int64(300), aws.Int64Value(stub.receiveInput.VisibilityTimeout))
}

func TestReceiveEmptyPoll(t *testing.T) {
	helper := newHelperForTest(&sqsStub{receiveOut: &awssqs.ReceiveMessageOutput{}})

	msgs, err := helper.Receive(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestReceiveErrorIsRetryableQueueError(t *testing.T) {
	helper := newHelperForTest(&sqsStub{receiveErr: errors.New("throttled")})

	_, err := helper.Receive(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrQueue)
	assert.True(t, appErrors.IsRetryable(err))
}

func TestDeleteAndSend(t *testing.T) {
	stub := &sqsStub{}
	helper := newHelperForTest(stub)

	require.NoError(t, helper.Delete(context.Background(), "rh-9"))
	id, err := helper.Send(context.Background(), "{}")
	require.NoError(t, err)

	assert.Equal(t, []string{"rh-9"}, stub.deleted)
	assert.Equal(t, []string{"{}"}, stub.sent)
	assert.Equal(t, "msg-new", id)
}
