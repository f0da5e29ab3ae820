package sqs

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awssqs "github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"

	"github.com/DwayneJengSage/Bridge-Reporter/pkg/config"
	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
)

// SQS caps a single receive at ten messages and a long poll at twenty seconds.
const (
	maxReceiveBatch = 10
	maxWaitSeconds  = 20
)

// Message is one received queue entry.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
	ReceiveCount  string
}

// Helper wraps the queue operations the poll worker needs.
type Helper struct {
	client            sqsiface.SQSAPI
	queueURL          string
	waitTime          time.Duration
	visibilityTimeout time.Duration
}

// NewSession builds an AWS session using the default credential chain.
func NewSession(region string) (*session.Session, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:     aws.String(region),
		MaxRetries: aws.Int(2),
	})
	if err != nil {
		return nil, fmt.Errorf("could not initialize aws session: %w", err)
	}
	return sess, nil
}

// NewHelper binds client to the configured request queue.
func NewHelper(client sqsiface.SQSAPI, cfg config.QueueConfig) *Helper {
	return &Helper{
		client:            client,
		queueURL:          cfg.URL,
		waitTime:          cfg.WaitTime,
		visibilityTimeout: cfg.VisibilityTimeout,
	}
}

// Receive long-polls for up to max messages. An empty slice means the poll timed out.
func (h *Helper) Receive(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	if max > maxReceiveBatch {
		max = maxReceiveBatch
	}
	wait := int64(h.waitTime / time.Second)
	if wait > maxWaitSeconds {
		wait = maxWaitSeconds
	}

	input := &awssqs.ReceiveMessageInput{
		QueueUrl:            aws.String(h.queueURL),
		MaxNumberOfMessages: aws.Int64(int64(max)),
		WaitTimeSeconds:     aws.Int64(wait),
		AttributeNames:      []*string{aws.String(awssqs.MessageSystemAttributeNameApproximateReceiveCount)},
	}
	if h.visibilityTimeout > 0 {
		input.VisibilityTimeout = aws.Int64(int64(h.visibilityTimeout / time.Second))
	}

	out, err := h.client.ReceiveMessageWithContext(ctx, input)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrQueue, "receive from "+h.queueURL)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := Message{
			ID:            aws.StringValue(m.MessageId),
			ReceiptHandle: aws.StringValue(m.ReceiptHandle),
			Body:          aws.StringValue(m.Body),
		}
		if count, ok := m.Attributes[awssqs.MessageSystemAttributeNameApproximateReceiveCount]; ok {
			msg.ReceiveCount = aws.StringValue(count)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Delete acknowledges a message so it is not redelivered.
func (h *Helper) Delete(ctx context.Context, receiptHandle string) error {
	_, err := h.client.DeleteMessageWithContext(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(h.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrQueue, "delete from "+h.queueURL)
	}
	return nil
}

// Send enqueues body and returns the new message id.
func (h *Helper) Send(ctx context.Context, body string) (string, error) {
	out, err := h.client.SendMessageWithContext(ctx, &awssqs.SendMessageInput{
		QueueUrl:    aws.String(h.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrQueue, "send to "+h.queueURL)
	}
	return aws.StringValue(out.MessageId), nil
}
