package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// CommandHandler вызывается для каждой распознанной команды,
// адресованной этому менеджеру. Вызов идёт из delivery-потока брокера,
// асинхронно к главному циклу: обработчик обязан только взводить флаги.
type CommandHandler func(cmd Command)

// StatusEnvelope — конверт публикации статуса.
type StatusEnvelope struct {
	ID        string    `json:"id"`
	Manager   string    `json:"manager"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  any       `json:"snapshot"`
}

// ControlChannel — дуплексный control-канал одного менеджера.
//
// Состояния: Disconnected → Connecting → Connected → (Disconnected при
// фатальной ошибке). Отсутствие связности сигнализируется bool'ом из
// Connect; все последующие вызовы при этом — no-op.
type ControlChannel struct {
	managerName string
	url         string
	logger      *slog.Logger

	mu        sync.Mutex
	conn      *Connection
	connected bool
	closed    bool

	broadcastQueue string
	commandQueue   string

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewControlChannel создаёт канал для менеджера с данным именем.
func NewControlChannel(managerName, url string, logger *slog.Logger) *ControlChannel {
	return &ControlChannel{
		managerName: managerName,
		url:         url,
		logger:      logger,
	}
}

// Connect подключается к брокеру и объявляет топологию.
//
// Делает retryCount+1 попыток с паузой 3 секунды. Никогда не возвращает
// ошибку: отсутствие связности — валидный режим работы менеджера,
// сигнализируемый false. Обработчики здесь не подписываются — это
// отдельный явный шаг RegisterHandlers, который главный цикл делает
// когда его собственное состояние готово.
func (c *ControlChannel) Connect(retryCount int, timeout time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected || c.closed {
		return c.connected
	}

	conn, err := Dial(c.url, retryCount, timeout, c.logger)
	if err != nil {
		c.logger.Error("control channel unavailable", "error", err)
		return false
	}

	broadcastQueue, commandQueue, err := setupTopology(conn.Channel(), c.managerName)
	if err != nil {
		c.logger.Error("control channel topology setup failed", "error", err)
		conn.Close()
		return false
	}

	c.conn = conn
	c.connected = true
	c.broadcastQueue = broadcastQueue
	c.commandQueue = commandQueue

	c.logger.Info("control channel connected",
		"broadcast_queue", broadcastQueue,
		"command_queue", commandQueue,
	)
	return true
}

// Connected возвращает true при активном подключении.
func (c *ControlChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.conn != nil && c.conn.IsConnected()
}

// RegisterHandlers подписывает обработчик команд на broadcast- и
// point-to-point очереди. No-op без подключения.
func (c *ControlChannel) RegisterHandlers(ctx context.Context, handler CommandHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.closed {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(ctx, c.broadcastQueue, func(body []byte) {
			c.dispatchBroadcast(body, handler)
		})
	}()
	go func() {
		defer c.wg.Done()
		c.consumeLoop(ctx, c.commandQueue, func(body []byte) {
			c.dispatchDirect(body, handler)
		})
	}()
}

// dispatchBroadcast разбирает broadcast-команду и применяет фильтр целей.
func (c *ControlChannel) dispatchBroadcast(body []byte, handler CommandHandler) {
	payload, err := ParseBroadcast(body)
	if err != nil {
		c.logger.Warn("unparsable broadcast payload", "error", err)
		return
	}

	if !payload.Targets(c.managerName) {
		c.logger.Debug("broadcast not addressed to this manager",
			"command", payload.Command, "targets", payload.Managers)
		return
	}

	cmd, ok := payload.Recognize()
	if !ok {
		c.logger.Warn("invalid broadcast command ignored", "command", payload.Command)
		return
	}

	c.logger.Info("broadcast command received", "command", cmd)
	handler(cmd)
}

// dispatchDirect разбирает point-to-point команду.
// Очередь адресная, фильтр целей не требуется.
func (c *ControlChannel) dispatchDirect(body []byte, handler CommandHandler) {
	payload, err := ParseBroadcast(body)
	if err != nil {
		c.logger.Warn("unparsable direct command payload", "error", err)
		return
	}

	cmd, ok := payload.Recognize()
	if !ok {
		c.logger.Warn("invalid direct command ignored", "command", payload.Command)
		return
	}

	c.logger.Info("direct command received", "command", cmd)
	handler(cmd)
}

// consumeLoop потребляет очередь до отмены контекста, переживая reconnect.
func (c *ControlChannel) consumeLoop(ctx context.Context, queue string, handle func(body []byte)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		deliveries, err := c.setupConsume(queue)
		if err != nil {
			c.logger.Warn("failed to consume control queue", "queue", queue, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-c.conn.ReconnectNotify():
				c.redeclareTopology()
				continue
			}
		}

		if !c.drainDeliveries(ctx, deliveries, handle) {
			return
		}

		// Канал доставки закрылся — ждём переподключения.
		select {
		case <-ctx.Done():
			return
		case <-c.conn.ReconnectNotify():
			c.redeclareTopology()
		}
	}
}

// setupConsume начинает потребление очереди.
func (c *ControlChannel) setupConsume(queue string) (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	// Команды потребляются с auto-ack: потерянная при крахе команда
	// будет повторена оператором, а requeue-петля хуже потери.
	return ch.Consume(
		queue, // queue
		"",    // consumer tag (auto-generated)
		true,  // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
}

// drainDeliveries обрабатывает доставки; false — пора выходить.
func (c *ControlChannel) drainDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery, handle func(body []byte)) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case raw, ok := <-deliveries:
			if !ok {
				return true
			}
			handle(raw.Body)
		}
	}
}

// redeclareTopology восстанавливает очереди после reconnect
// (авто-удаляемые очереди умирают вместе с соединением).
func (c *ControlChannel) redeclareTopology() {
	ch := c.conn.Channel()
	if ch == nil {
		return
	}
	if _, _, err := setupTopology(ch, c.managerName); err != nil {
		c.logger.Warn("failed to redeclare topology after reconnect", "error", err)
	}
}

// SendStatus публикует снапшот статуса. Best-effort: любой сбой
// логируется и проглатывается — публикация статуса никогда не должна
// ронять главный цикл.
func (c *ControlChannel) SendStatus(snapshot any) {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected && !c.closed
	c.mu.Unlock()

	if !connected || conn == nil {
		return
	}

	envelope := StatusEnvelope{
		ID:        uuid.New().String(),
		Manager:   c.managerName,
		Timestamp: time.Now().UTC(),
		Snapshot:  snapshot,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		c.logger.Warn("failed to marshal status envelope", "error", err)
		return
	}

	ch := conn.Channel()
	if ch == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		string(ExchangeStatus), // exchange
		c.managerName,          // routing key
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   envelope.ID,
			Timestamp:   envelope.Timestamp,
			Body:        body,
		},
	)
	if err != nil {
		c.logger.Warn("failed to publish status", "error", err)
	}
}

// Close закрывает канал. Повторный вызов — no-op.
func (c *ControlChannel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.connected = false
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	if conn != nil {
		conn.Close()
	}
}
