package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrProducerClosed = errors.New("kafka producer closed")

// kafka.Writerのうち使う分だけ（テストで差し替える）
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer はinboxに積んだメッセージを1本のgoroutineで書き出す。
// Publishはリクエスト処理をブロックしない（inboxが詰まったときだけ待つ）。
type Producer struct {
	w     messageWriter
	inbox chan kafka.Message
	log   *zap.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	quitCh    chan struct{}
	doneCh    chan struct{}
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newProducer(w, buf, log)
}

func newProducer(w messageWriter, buf int, log *zap.Logger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{
		w:      w,
		inbox:  make(chan kafka.Message, buf),
		log:    log,
		quitCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start は書き出しループを起動する。ctxが終わったら残りを流してから閉じる。
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.doneCh)

		stop := ctx.Done()
		for {
			select {
			case <-stop:
				p.Close()
				stop = nil
			case m, ok := <-p.inbox:
				if !ok {
					if err := p.w.Close(); err != nil {
						p.log.Warn("kafka writer close failed", zap.Error(err))
					}
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Warn("kafka write failed",
			zap.String("key", string(m.Key)),
			zap.Error(err),
		)
	}
}

// Publish はinboxに積む。閉じた後はErrProducerClosed。
func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}

	msg := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}

	select {
	case p.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quitCh:
		return ErrProducerClosed
	}
}

// inboxを閉じる。goroutineは残りを書き出してから終わる。
func (p *Producer) Close() {
	p.closeOnce.Do(func() {
		// 待っているPublishを先に抜けさせてからinboxを閉じる
		close(p.quitCh)
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
	})
}

// goroutineが終わるまで待つ。
func (p *Producer) WaitClosed() { <-p.doneCh }
