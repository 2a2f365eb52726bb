package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelJobProgress = "job_progress"
)

// ProgressMessage one step of a running analysis job
type ProgressMessage struct {
	Type     string `json:"type"`
	JobID    string `json:"job_id"`
	RepoURL  string `json:"repo_url,omitempty"`
	Status   string `json:"status"`
	Step     string `json:"step"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Pipeline steps
const (
	StepCloning     = "cloning"
	StepScanning    = "scanning"
	StepClassifying = "classifying"
	StepPersisting  = "persisting"
	StepDone        = "done"
)

// StepProgress completion percentage reached when a step starts
var StepProgress = map[string]int{
	StepCloning:     15,
	StepScanning:    40,
	StepClassifying: 65,
	StepPersisting:  85,
	StepDone:        100,
}

var StepMessages = map[string]string{
	StepCloning:     "Cloning repository",
	StepScanning:    "Scanning source tree",
	StepClassifying: "Classifying sensitive data",
	StepPersisting:  "Saving analysis results",
	StepDone:        "Analysis completed",
}

// Fill sets the type and derives progress and message from the step.
func (m *ProgressMessage) Fill() {
	m.Type = "job_progress"
	if m.Progress == 0 && m.Step != "" {
		if progress, ok := StepProgress[m.Step]; ok {
			m.Progress = progress
		}
	}
	if m.Message == "" && m.Step != "" {
		if message, ok := StepMessages[m.Step]; ok {
			m.Message = message
		}
	}
}

// Publisher publishes progress over Redis for the API process.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress fills and publishes msg.
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	msg.Fill()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, ChannelJobProgress, data).Err()
}

type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe delivers progress messages to handler until ctx is done.
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ProgressMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelJobProgress)
	defer pubsub.Close()

	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var progressMsg ProgressMessage
			if err := json.Unmarshal([]byte(msg.Payload), &progressMsg); err != nil {
				continue
			}

			handler(&progressMsg)
		}
	}
}
