package kafka

import (
	"context"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dustin10/outbox-relay/internal/model"
)

func TestBuildMessage(t *testing.T) {
	entry := model.OutboxEntry{
		ID:           "e-1",
		Topic:        "user",
		PartitionKey: "u-1",
		Headers:      model.Headers{"type": "USER_CREATED"},
		Payload:      []byte(`{"id":"u-1"}`),
	}

	msg := buildMessage(entry)

	assert.Equal(t, "user", msg.Topic)
	assert.Equal(t, []byte("u-1"), msg.Key)
	assert.Equal(t, []byte(`{"id":"u-1"}`), msg.Value)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, []byte("USER_CREATED"), msg.Headers[0].Value)
}

func TestBuildMessageAbsentFields(t *testing.T) {
	msg := buildMessage(model.OutboxEntry{ID: "e-1", Topic: "user"})

	assert.Equal(t, "user", msg.Topic)
	assert.Nil(t, msg.Key, "absent partition key leaves partitioning to the broker")
	assert.Nil(t, msg.Value, "absent payload sends an empty body")
	assert.Empty(t, msg.Headers)
}

func TestBuildMessageMapsAllHeaders(t *testing.T) {
	entry := model.OutboxEntry{
		Topic:   "article",
		Headers: model.Headers{"type": "ARTICLE_CREATED", "trace": "abc", "source": "api"},
	}

	msg := buildMessage(entry)

	got := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		got[h.Key] = string(h.Value)
	}
	assert.Equal(t, map[string]string{"type": "ARTICLE_CREATED", "trace": "abc", "source": "api"}, got)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: ErrPublishTimeout},
		{
			name: "wrapped deadline",
			err:  errors.Join(errors.New("write"), context.DeadlineExceeded),
			want: ErrPublishTimeout,
		},
		{
			name: "batch with deadline",
			err:  kafkago.WriteErrors{context.DeadlineExceeded},
			want: ErrPublishTimeout,
		},
		{name: "protocol error", err: kafkago.InvalidTopic, want: ErrBrokerRejected},
		{name: "unknown error", err: errors.New("boom"), want: ErrBrokerRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err), tt.want)
		})
	}
}
