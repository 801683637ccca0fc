package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Publisher interface {
	Publish(ctx context.Context, destination string, body []byte) error
}

// QStashNotifier publishes each new approval to a reviewer webhook.
type QStashNotifier struct {
	publisher   Publisher
	destination string
}

func NewQStashNotifier(p Publisher, destination string) (*QStashNotifier, error) {
	if p == nil {
		return nil, errors.New("publisher is required")
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, errors.New("notification destination is required")
	}
	return &QStashNotifier{publisher: p, destination: destination}, nil
}

type notification struct {
	Event  string `json:"event"`
	Record Record `json:"approval"`
}

func (n *QStashNotifier) Notify(ctx context.Context, rec Record) error {
	body, err := json.Marshal(notification{Event: "approval.pending", Record: rec})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return n.publisher.Publish(ctx, n.destination, body)
}
