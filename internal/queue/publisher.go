package queue

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"

    "github.com/iliyamo/golf-intranet/internal/model"
)

// publishTimeout bounds one fire-and-forget publish.
const publishTimeout = 5 * time.Second

// Publisher publishes occupancy events to RabbitMQ.  Each publish dials
// its own connection, so a broker outage never blocks startup.  It
// implements the occupancy tracker's Notifier.
type Publisher struct {
    url string
    log *zap.Logger
    // send is replaced in tests.
    send func(ctx context.Context, queue string, body []byte) error
}

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url string, log *zap.Logger) *Publisher {
    p := &Publisher{url: url, log: log}
    p.send = p.publish
    return p
}

// OccupancyChanged publishes an OccupancyChangedEvent in the background.
func (p *Publisher) OccupancyChanged(_ context.Context, ct *model.CourseTime, op string) {
    if ct == nil {
        return
    }
    ev := OccupancyChangedEvent{
        TimeID:     ct.ID,
        JoinNum:    ct.JoinNum,
        Status:     string(ct.Status),
        Version:    ct.Version,
        Op:         op,
        OccurredAt: time.Now().UTC(),
    }
    go p.fire(OccupancyChangedQueue, ev, zap.WarnLevel)
}

// ReconcileRequested publishes a ReconcileRequest in the background.  A
// failure here leaves the divergence to the operator, so it is logged at
// ERROR.
func (p *Publisher) ReconcileRequested(_ context.Context, timeID uint64, cause error) {
    req := ReconcileRequest{TimeID: timeID, RequestedAt: time.Now().UTC()}
    if cause != nil {
        req.Cause = cause.Error()
    }
    go p.fire(ReconcileQueue, req, zap.ErrorLevel)
}

func (p *Publisher) fire(queue string, v any, failLevel zapcore.Level) {
    ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
    defer cancel()
    if err := p.Publish(ctx, queue, v); err != nil {
        p.log.Check(failLevel, "rabbitmq: publish failed").Write(zap.String("queue", queue), zap.Error(err))
    }
}

// Publish JSON-encodes v and sends it to the named durable queue.
func (p *Publisher) Publish(ctx context.Context, queue string, v any) error {
    body, err := json.Marshal(v)
    if err != nil {
        return err
    }
    return p.send(ctx, queue, body)
}

func (p *Publisher) publish(ctx context.Context, queue string, body []byte) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
        return err
    }
    return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    })
}
