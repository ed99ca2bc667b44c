// Package stream publishes accepted batches to NATS JetStream for the
// archive worker and other readers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/journal"
	"github.com/nats-io/nats.go"
)

// BatchEvent announces one accepted batch. Journal is the attested RLP
// encoding.
type BatchEvent struct {
	BatchIndex uint64      `json:"batch_index"`
	OldRoot    common.Hash `json:"old_root"`
	NewRoot    common.Hash `json:"new_root"`
	Digest     common.Hash `json:"digest"`
	Journal    []byte      `json:"journal"`
}

func NewBatchEvent(j *journal.Journal, oldRoot common.Hash) (*BatchEvent, error) {
	b, err := j.Encode()
	if err != nil {
		return nil, err
	}
	digest, err := j.Digest()
	if err != nil {
		return nil, err
	}
	return &BatchEvent{
		BatchIndex: j.BatchIndex,
		OldRoot:    oldRoot,
		NewRoot:    j.NewUTXOMerkleRoot,
		Digest:     digest,
		Journal:    b,
	}, nil
}

// DecodeJournal returns the journal and checks it against the digest.
func (e *BatchEvent) DecodeJournal() (*journal.Journal, error) {
	j, err := journal.Decode(e.Journal)
	if err != nil {
		return nil, err
	}
	d, err := j.Digest()
	if err != nil {
		return nil, err
	}
	if d != e.Digest || j.BatchIndex != e.BatchIndex {
		return nil, fmt.Errorf("batch event %d does not match its journal", e.BatchIndex)
	}
	return j, nil
}

type Config struct {
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
	Subject string `yaml:"subject"`
	Durable string `yaml:"durable"`
}

// EnsureStream creates the stream if it does not exist yet.
func EnsureStream(js nats.JetStreamContext, cfg *Config) error {
	if _, err := js.StreamInfo(cfg.Stream); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.Subject},
	})
	return err
}

type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

type Publisher struct {
	js      jetStream
	subject string
}

func NewPublisher(js nats.JetStreamContext, subject string) *Publisher {
	return &Publisher{js: js, subject: subject}
}

// Publish sends ev with the batch index as message id, so a retried
// publish is dropped by the server's duplicate window.
func (p *Publisher) Publish(ctx context.Context, ev *BatchEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(p.subject, data,
		nats.Context(ctx),
		nats.MsgId("batch-"+strconv.FormatUint(ev.BatchIndex, 10)),
	)
	if err != nil {
		return fmt.Errorf("publish batch %d: %w", ev.BatchIndex, err)
	}
	return nil
}
