package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisher_Publish(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	e := Event{
		Type:         AccountCreated,
		AccountID:    "acc-1",
		UserID:       "u1",
		SerialNumber: 1000,
		Website:      "github.com",
		OccurredAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "vault.accounts" {
			return errors.New("wrong topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "acc-1" {
			return errors.New("wrong key")
		}
		val, _ := msg.Value.Encode()
		var got Event
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got != e {
			return errors.New("payload mismatch")
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != string(AccountCreated) {
			return errors.New("missing type header")
		}
		return nil
	})

	p := NewKafkaPublisherWithProducer(sp, "vault.accounts")
	require.NoError(t, p.Publish(context.Background(), e))
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_SendError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisherWithProducer(sp, "t")
	err := p.Publish(context.Background(), Event{Type: AccountDeleted, AccountID: "a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_CancelledContext(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	p := NewKafkaPublisherWithProducer(sp, "t")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, Event{}), context.Canceled)
	require.NoError(t, p.Close())
}

func TestNewKafkaPublisher_UsesConfig(t *testing.T) {
	orig := newSyncProducer
	defer func() { newSyncProducer = orig }()

	var gotCfg *sarama.Config
	newSyncProducer = func(addrs []string, cfg *sarama.Config) (sarama.SyncProducer, error) {
		gotCfg = cfg
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, addrs)
		return mocks.NewSyncProducer(t, cfg), nil
	}

	p, err := NewKafkaPublisher([]string{"k1:9092", "k2:9092"}, "vault.accounts")
	require.NoError(t, err)
	assert.Equal(t, sarama.WaitForAll, gotCfg.Producer.RequiredAcks)
	assert.True(t, gotCfg.Producer.Return.Successes)
	require.NoError(t, p.Close())

	newSyncProducer = func([]string, *sarama.Config) (sarama.SyncProducer, error) {
		return nil, errors.New("no brokers")
	}
	_, err = NewKafkaPublisher(nil, "t")
	assert.ErrorContains(t, err, "no brokers")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
