package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"

    "github.com/iliyamo/golf-intranet/internal/repository"
)

// ReconcileFunc repairs the occupancy of one course time.
type ReconcileFunc func(ctx context.Context, timeID uint64) error

// ReconcileConsumer consumes occupancy.reconcile and runs a ReconcileFunc
// for each request.
type ReconcileConsumer struct {
    url     string
    handle  ReconcileFunc
    log     *zap.Logger
    timeout time.Duration
}

func NewReconcileConsumer(url string, handle ReconcileFunc, log *zap.Logger) *ReconcileConsumer {
    return &ReconcileConsumer{url: url, handle: handle, log: log, timeout: 10 * time.Second}
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with exponential backoff when the connection drops.
func (c *ReconcileConsumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn("reconcile-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn("reconcile-consumer: consume loop ended, reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *ReconcileConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(10, 0, false); err != nil {
        c.log.Warn("reconcile-consumer: set QoS failed", zap.Error(err))
    }
    if _, err := ch.QueueDeclare(ReconcileQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(ReconcileQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            switch c.process(ctx, d.Body, d.Redelivered) {
            case ack:
                _ = d.Ack(false)
            case requeue:
                _ = d.Nack(false, true)
            default:
                _ = d.Nack(false, false)
            }
        }
    }
}

type outcome int

const (
    ack outcome = iota
    requeue
    drop
)

// process runs the handler for one message body. A failed repair is
// requeued once; a second failure drops it and leaves it to an operator.
func (c *ReconcileConsumer) process(ctx context.Context, body []byte, redelivered bool) outcome {
    var req ReconcileRequest
    if err := json.Unmarshal(body, &req); err != nil || req.TimeID == 0 {
        c.log.Error("reconcile-consumer: malformed request", zap.ByteString("body", body), zap.Error(err))
        return drop
    }
    hctx, cancel := context.WithTimeout(ctx, c.timeout)
    defer cancel()
    err := c.handle(hctx, req.TimeID)
    switch {
    case err == nil:
        c.log.Info("reconcile-consumer: course time reconciled", zap.Uint64("time_id", req.TimeID))
        return ack
    case errors.Is(err, repository.ErrNotFound):
        // course time deleted since the request; nothing left to repair
        return ack
    case !redelivered:
        c.log.Warn("reconcile-consumer: reconcile failed, requeueing", zap.Uint64("time_id", req.TimeID), zap.Error(err))
        return requeue
    default:
        c.log.Error("reconcile-consumer: reconcile failed",
            zap.Uint64("time_id", req.TimeID), zap.Bool("reconcile_required", true), zap.Error(err))
        return drop
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
