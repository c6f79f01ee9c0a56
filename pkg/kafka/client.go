// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"consultor-ia-go/internal/config"
	"consultor-ia-go/pkg/log"
	"consultor-ia-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// maxAttempts 之后提交 offset，放弃该任务。
const maxAttempts = 3

// TaskProcessor 是能处理入库任务的服务，使消费者与具体流水线解耦。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestTask) error
}

// Producer 发送入库任务。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}}
}

// ProduceIngestTask 发送一个入库任务到 Kafka。
func (p *Producer) ProduceIngestTask(ctx context.Context, task tasks.IngestTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(task.Key()), Value: taskBytes})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer 逐条同步处理任务；失败次数记录在 Redis，达到上限后提交 offset。
type Consumer struct {
	reader    *kafka.Reader
	rdb       *redis.Client
	processor TaskProcessor
}

// NewConsumer 创建消费者。rdb 为 nil 时失败任务直接提交，不做重试。
func NewConsumer(cfg config.KafkaConfig, rdb *redis.Client, processor TaskProcessor) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  strings.Split(cfg.Brokers, ","),
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		rdb:       rdb,
		processor: processor,
	}
}

// Run 阻塞直到 ctx 取消或读取出错。
func (c *Consumer) Run(ctx context.Context) {
	log.Infof("[KafkaConsumer] 已启动，正在监听主题 '%s'", c.reader.Config().Topic)
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Errorf("[KafkaConsumer] 关闭消费者失败: %v", err)
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Error("[KafkaConsumer] 从 Kafka 读取消息失败", err)
			}
			return
		}

		var task tasks.IngestTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("[KafkaConsumer] 无法解析消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			c.commit(ctx, m)
			continue
		}

		log.Infof("[KafkaConsumer] 开始处理入库任务: %s", task.Path)
		if err := c.processor.Process(ctx, task); err != nil {
			log.Errorf("[KafkaConsumer] 入库任务失败: %s, error: %v", task.Path, err)
			if c.shouldGiveUp(ctx, task) {
				log.Errorf("[KafkaConsumer] 任务多次失败(>=%d)，提交 offset 终止重试: %s", maxAttempts, task.Path)
				c.commit(ctx, m)
			}
			continue
		}

		log.Infof("[KafkaConsumer] 入库任务成功: %s", task.Path)
		if c.rdb != nil {
			_ = c.rdb.Del(ctx, attemptsKey(task)).Err()
		}
		c.commit(ctx, m)
	}
}

// shouldGiveUp 累加失败次数。Redis 异常时不提交 offset，让 Kafka 重投。
func (c *Consumer) shouldGiveUp(ctx context.Context, task tasks.IngestTask) bool {
	if c.rdb == nil {
		return true
	}
	key := attemptsKey(task)
	attempts, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false
	}
	_ = c.rdb.Expire(ctx, key, 24*time.Hour).Err()
	return attempts >= maxAttempts
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Errorf("[KafkaConsumer] 提交 offset 失败: %v", err)
	}
}

func attemptsKey(task tasks.IngestTask) string {
	return fmt.Sprintf("kafka:attempts:%s", task.Key())
}
