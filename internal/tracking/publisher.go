package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/announce/internal/domain"
)

const publishTimeout = 5 * time.Second

// SQSAPI is the subset of the SQS client used by the event pipeline.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Publisher is an ingest event sink that hands events to SQS so the
// tracking endpoints never wait on the database. Sends are asynchronous.
type Publisher struct {
	client   SQSAPI
	queueURL string
	wg       sync.WaitGroup
}

func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

// Append enqueues e. Only encoding errors are returned; send failures are
// logged.
func (p *Publisher) Append(_ context.Context, e *domain.CampaignEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal tracking event: %w", err)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
		})
		if err != nil {
			log.Printf("[tracking.Publisher] publishing %s event for campaign %s: %v", e.Type, e.CampaignID, err)
		}
	}()
	return nil
}

// Wait blocks until in-flight sends finish.
func (p *Publisher) Wait() {
	p.wg.Wait()
}
