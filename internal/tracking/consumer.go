package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/service/ingest"
)

const receiveErrorBackoff = 5 * time.Second

// Consumer drains the tracking queue into an event sink, normally an
// ingest.StoreSink. Messages are deleted once stored, or when they can
// never be stored; anything else is left for redelivery.
type Consumer struct {
	client   SQSAPI
	queueURL string
	sink     ingest.EventSink
	waitTime int32
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewConsumer(client SQSAPI, queueURL string, sink ingest.EventSink) *Consumer {
	return &Consumer{
		client:   client,
		queueURL: queueURL,
		sink:     sink,
		waitTime: 20,
		done:     make(chan struct{}),
	}
}

func (c *Consumer) Start(ctx context.Context) {
	log.Printf("[tracking.Consumer] started (queue=%s)", c.queueURL)
	c.wg.Add(1)
	go c.poll(ctx)
}

// Stop ends polling and waits for the current batch.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
	c.wg.Wait()
}

func (c *Consumer) poll(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     c.waitTime,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[tracking.Consumer] receive error: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-time.After(receiveErrorBackoff):
			}
			continue
		}
		c.ProcessMessages(ctx, out.Messages)
	}
}

// ProcessMessages stores a received batch and returns how many messages
// were deleted.
func (c *Consumer) ProcessMessages(ctx context.Context, msgs []types.Message) int {
	deleted := 0
	for _, msg := range msgs {
		var evt domain.CampaignEvent
		if msg.Body == nil || json.Unmarshal([]byte(*msg.Body), &evt) != nil || !evt.Type.Valid() || evt.CampaignID == "" {
			log.Printf("[tracking.Consumer] bad message %s, dropping", aws.ToString(msg.MessageId))
			c.deleteMessage(ctx, msg.ReceiptHandle)
			deleted++
			continue
		}

		err := c.sink.Append(ctx, &evt)
		if errors.Is(err, ingest.ErrUnknownCampaign) {
			log.Printf("[tracking.Consumer] %s event for unknown campaign %s, dropping", evt.Type, evt.CampaignID)
			c.deleteMessage(ctx, msg.ReceiptHandle)
			deleted++
			continue
		}
		if err != nil {
			log.Printf("[tracking.Consumer] process error (%s): %v", evt.Type, err)
			continue
		}

		c.deleteMessage(ctx, msg.ReceiptHandle)
		deleted++
	}
	return deleted
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
	if err != nil {
		log.Printf("[tracking.Consumer] delete message: %v", err)
	}
}
