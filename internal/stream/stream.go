package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/danielpatrickdp/hormone-harness/internal/record"
)

// #region config
// Config locates the live step stream.
type Config struct {
	URL    string `yaml:"url"`     // redis://host:port/db; "" disables streaming
	Stream string `yaml:"stream"`  // stream key
	MaxLen int64  `yaml:"max_len"` // approximate trim bound, 0 = unbounded
}

func DefaultConfig() Config {
	return Config{Stream: "hormone:steps", MaxLen: 10_000}
}

// Dial connects to the configured Redis and checks it answers.
func Dial(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// #endregion config

// #region publisher
// Publisher appends run and step events to a Redis stream so runs can be
// followed live. Every entry carries an "event" field: run_started, step or
// run_finished.
type Publisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

var _ record.RunSink = (*Publisher)(nil)

func NewPublisher(client redis.Cmdable, cfg Config) *Publisher {
	if cfg.Stream == "" {
		cfg.Stream = DefaultConfig().Stream
	}
	return &Publisher{client: client, stream: cfg.Stream, maxLen: cfg.MaxLen}
}

func (p *Publisher) add(ctx context.Context, values map[string]any) error {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: values,
	}).Err()
}

func identityFields(event string, id record.Identity) map[string]any {
	return map[string]any{
		"event":      event,
		"run_id":     id.RunID,
		"benchmark":  id.Benchmark,
		"task_id":    strconv.Itoa(id.TaskID),
		"seed":       strconv.FormatInt(id.Seed, 10),
		"controller": id.Controller,
	}
}

func (p *Publisher) BeginRun(ctx context.Context, id record.Identity) error {
	if err := p.add(ctx, identityFields("run_started", id)); err != nil {
		return fmt.Errorf("publish run start: %w", err)
	}
	return nil
}

func (p *Publisher) WriteStep(ctx context.Context, rec record.StepRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal step: %w", err)
	}
	v := identityFields("step", rec.Identity)
	v["step"] = strconv.Itoa(rec.Step)
	v["regime"] = string(rec.RegimeAfter)
	v["validation"] = string(rec.Validation.Status)
	v["record"] = string(body)
	if err := p.add(ctx, v); err != nil {
		return fmt.Errorf("publish step %d: %w", rec.Step, err)
	}
	return nil
}

func (p *Publisher) FinishRun(ctx context.Context, id record.Identity, summary record.Summary) error {
	v := identityFields("run_finished", id)
	v["status"] = summary.Status
	v["steps"] = strconv.Itoa(summary.Steps)
	v["total_tokens"] = strconv.Itoa(summary.TotalTokens)
	if err := p.add(ctx, v); err != nil {
		return fmt.Errorf("publish run finish: %w", err)
	}
	return nil
}

// #endregion publisher
