package amqp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"closeout/internal/log"
)

// Config holds the broker topology.
type Config struct {
	URL          string
	Exchange     string
	Queue        string
	CompletedKey string
	Logger       *log.Logger
}

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	completedKey string
	logger       *log.Logger
}

func NewClient(cfg Config) (*Client, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: cfg.Exchange,
		queueName:    cfg.Queue,
		completedKey: cfg.CompletedKey,
		logger:       log.OrDefault(cfg.Logger, log.ComponentAMQP),
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	// Declare exchange
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// Declare queue
	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Bind queue to exchange
	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishReportRequest enqueues a report request for the worker.
func (c *Client) PublishReportRequest(ctx context.Context, msg *ReportRequestMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.queueName, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Published report request",
		"request_id", msg.RequestID,
		"months", msg.Months,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishReportCompleted announces a finished request on the completion key.
func (c *Client) PublishReportCompleted(ctx context.Context, msg *ReportCompletedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.completedKey, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Published report completion",
		"request_id", msg.RequestID,
		"status", msg.Status,
		"routing_key", c.completedKey)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent, // make message persistent
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// RequestHandler processes one report request. Returning an error wrapping
// ErrPermanent drops the message; any other error requeues it.
type RequestHandler func(context.Context, *ReportRequestMessage) error

// ConsumeReportRequests consumes report requests until ctx is done.
func (c *Client) ConsumeReportRequests(ctx context.Context, handler RequestHandler) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming report requests", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

type outcome int

const (
	acked outcome = iota
	dropped
	requeued
)

func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler RequestHandler) outcome {
	msg, err := ReportRequestMessageFromJSON(delivery.Body)
	if err == nil {
		err = msg.Validate()
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "Rejecting invalid report request", log.FieldError, err)
		delivery.Nack(false, false) // reject and don't requeue
		return dropped
	}

	c.logger.InfoContext(ctx, "Processing report request",
		"request_id", msg.RequestID,
		"months", msg.Months)

	if err := handler(ctx, msg); err != nil {
		if errors.Is(err, ErrPermanent) {
			c.logger.ErrorContext(ctx, "Dropping report request",
				log.FieldError, err,
				"request_id", msg.RequestID)
			delivery.Nack(false, false)
			return dropped
		}
		c.logger.ErrorContext(ctx, "Failed to handle report request",
			log.FieldError, err,
			"request_id", msg.RequestID)
		delivery.Nack(false, true) // reject and requeue
		return requeued
	}

	delivery.Ack(false) // acknowledge successful processing
	c.logger.InfoContext(ctx, "Successfully processed report request", "request_id", msg.RequestID)
	return acked
}

// Ping reports whether the broker connection and channel are still open.
func (c *Client) Ping(context.Context) error {
	if c.conn == nil || c.conn.IsClosed() {
		return errors.New("AMQP connection closed")
	}
	if c.channel == nil || c.channel.IsClosed() {
		return errors.New("AMQP channel closed")
	}
	return nil
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
