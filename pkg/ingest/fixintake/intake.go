// Package fixintake accepts FIX 4.4 NewOrderSingle messages and queues the
// orders for the next batch.
package fixintake

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/go_util/pkg/shardqueue"
	"github.com/joripage/utxo-orderbook/pkg/ingest"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	"github.com/quickfixgo/fix44/executionreport"
	"github.com/quickfixgo/fix44/newordersingle"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrUnsupported = errors.New("unsupported order")
	ErrBadField    = errors.New("bad field")
)

type Config struct {
	ConfigFile       string `yaml:"config_file"`
	EnableQueue      bool   `yaml:"enable_queue"`
	EnableShardQueue bool   `yaml:"enable_shard_queue"`
	// GTCBatches is how many batches a GTC order stays live.
	GTCBatches uint64 `yaml:"gtc_batches"`
}

const (
	numShards = 16
	queueSize = 100_000
)

// pending is an accepted order still waiting for its batch. The expiry is
// fixed only when the order is drained.
type pending struct {
	clOrdID string
	order   utxo.Order
	horizon uint64
}

type inboundMsg struct {
	msg       *quickfix.Message
	sessionID quickfix.SessionID
}

// Intake implements quickfix.Application.
type Intake struct {
	*quickfix.MessageRouter
	cfg        Config
	rules      ingest.Rule
	nonces     ingest.NonceSource
	dispatcher chan *inboundMsg
	shardQueue *shardqueue.Shardqueue
	send       func(m quickfix.Messagable, sessionID quickfix.SessionID) error
	execSeq    atomic.Uint64

	mu      sync.Mutex
	pending []pending
}

func NewIntake(cfg Config, rules ingest.Rule, nonces ingest.NonceSource) *Intake {
	if cfg.GTCBatches == 0 {
		cfg.GTCBatches = 1_000
	}
	a := &Intake{
		MessageRouter: quickfix.NewMessageRouter(),
		cfg:           cfg,
		rules:         rules,
		nonces:        nonces,
		send:          quickfix.SendToTarget,
	}
	a.AddRoute(newordersingle.Route(a.onNewOrderSingle))

	if cfg.EnableShardQueue {
		a.shardQueue = shardqueue.NewShardQueue(numShards, queueSize)
		a.shardQueue.Start(func(msg interface{}) error {
			if v, ok := msg.(*inboundMsg); ok {
				a.Route(v.msg, v.sessionID)
			}
			return nil
		})
	} else if cfg.EnableQueue {
		a.dispatcher = make(chan *inboundMsg, queueSize)
		go a.runDispatcher()
	}
	return a
}

// OnCreate implemented as part of Application interface
func (a *Intake) OnCreate(sessionID quickfix.SessionID) {}

// OnLogon implemented as part of Application interface
func (a *Intake) OnLogon(sessionID quickfix.SessionID) {
	zap.S().Infof("fix logon %s", sessionID)
}

// OnLogout implemented as part of Application interface
func (a *Intake) OnLogout(sessionID quickfix.SessionID) {
	zap.S().Infof("fix logout %s", sessionID)
}

// ToAdmin implemented as part of Application interface
func (a *Intake) ToAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) {}

// ToApp implemented as part of Application interface
func (a *Intake) ToApp(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	return nil
}

// FromAdmin implemented as part of Application interface
func (a *Intake) FromAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	return nil
}

// FromApp queues or routes incoming application messages. With the shard
// queue, messages of one account stay in order.
func (a *Intake) FromApp(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	if a.shardQueue != nil {
		a.shardQueue.Shard(routingKey(msg, sessionID), &inboundMsg{msg, sessionID})
		return nil
	}
	if a.dispatcher != nil {
		a.dispatcher <- &inboundMsg{msg, sessionID}
		return nil
	}
	return a.Route(msg, sessionID)
}

func routingKey(msg *quickfix.Message, sessionID quickfix.SessionID) string {
	if account, err := msg.Body.GetString(tag.Account); err == nil && account != "" {
		return account
	}
	return sessionID.String()
}

func (a *Intake) runDispatcher() {
	for msg := range a.dispatcher {
		if err := a.Route(msg.msg, msg.sessionID); err != nil {
			zap.S().Warnf("route fix message: %v", err)
		}
	}
}

func (a *Intake) onNewOrderSingle(msg newordersingle.NewOrderSingle, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	p, err := a.parse(msg)
	if err == nil {
		err = a.rules.Check(&p.order)
	}
	if err != nil {
		zap.S().Infof("reject %s: %v", p.clOrdID, err)
		a.report(p, enum.ExecType_REJECTED, enum.OrdStatus_REJECTED, err.Error(), sessionID)
		return nil
	}

	p.order.Nonce = a.nonces.Next()
	a.mu.Lock()
	a.pending = append(a.pending, p)
	a.mu.Unlock()

	a.report(p, enum.ExecType_NEW, enum.OrdStatus_NEW, "", sessionID)
	return nil
}

func wholeUnits(name string, d decimal.Decimal) (uint64, error) {
	if !d.IsInteger() || !d.IsPositive() {
		return 0, fmt.Errorf("%w: %s %s must be a positive whole number", ErrBadField, name, d)
	}
	v, err := strconv.ParseUint(d.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s", ErrBadField, name, d)
	}
	return v, nil
}

func (a *Intake) parse(msg newordersingle.NewOrderSingle) (pending, error) {
	p := pending{}
	p.clOrdID, _ = msg.GetClOrdID()

	account, _ := msg.GetAccount()
	if !common.IsHexAddress(account) {
		return p, fmt.Errorf("%w: account %q is not an address", ErrBadField, account)
	}
	p.order.Owner = common.HexToAddress(account)

	side, _ := msg.GetSide()
	switch side {
	case enum.Side_BUY:
		p.order.Side = utxo.Buy
	case enum.Side_SELL:
		p.order.Side = utxo.Sell
	default:
		return p, fmt.Errorf("%w: side %q", ErrUnsupported, side)
	}

	if ordType, _ := msg.GetOrdType(); ordType != enum.OrdType_LIMIT {
		return p, fmt.Errorf("%w: order type %q", ErrUnsupported, ordType)
	}

	price, rerr := msg.GetPrice()
	if rerr != nil {
		return p, fmt.Errorf("%w: missing price", ErrBadField)
	}
	qty, rerr := msg.GetOrderQty()
	if rerr != nil {
		return p, fmt.Errorf("%w: missing quantity", ErrBadField)
	}
	var err error
	if p.order.Price, err = wholeUnits("price", price); err != nil {
		return p, err
	}
	if p.order.Quantity, err = wholeUnits("quantity", qty); err != nil {
		return p, err
	}

	tif, rerr := msg.GetTimeInForce()
	if rerr != nil {
		tif = enum.TimeInForce_DAY
	}
	switch tif {
	case enum.TimeInForce_DAY:
		p.horizon = 1
	case enum.TimeInForce_GOOD_TILL_CANCEL:
		p.horizon = a.cfg.GTCBatches
	default:
		return p, fmt.Errorf("%w: time in force %q", ErrUnsupported, tif)
	}
	return p, nil
}

func (a *Intake) report(p pending, execType enum.ExecType, status enum.OrdStatus, text string, sessionID quickfix.SessionID) {
	side := enum.Side_BUY
	if p.order.Side == utxo.Sell {
		side = enum.Side_SELL
	}
	leaves := decimal.Zero
	if status == enum.OrdStatus_NEW {
		leaves = decimal.NewFromBigInt(new(big.Int).SetUint64(p.order.Quantity), 0)
	}
	execID := strconv.FormatUint(a.execSeq.Add(1), 10)

	rpt := executionreport.New(
		field.NewOrderID(p.clOrdID),
		field.NewExecID(execID),
		field.NewExecType(execType),
		field.NewOrdStatus(status),
		field.NewSide(side),
		field.NewLeavesQty(leaves, 0),
		field.NewCumQty(decimal.Zero, 0),
		field.NewAvgPx(decimal.Zero, 0),
	)
	rpt.SetClOrdID(p.clOrdID)
	if text != "" {
		rpt.SetText(text)
	}
	if err := a.send(rpt, sessionID); err != nil {
		zap.S().Debugf("send execution report %s: %v", p.clOrdID, err)
	}
}

// Drain hands over every queued order, with expiries counted from
// currentBatch, and empties the queue.
func (a *Intake) Drain(currentBatch uint64) []utxo.Order {
	a.mu.Lock()
	queued := a.pending
	a.pending = nil
	a.mu.Unlock()

	out := make([]utxo.Order, 0, len(queued))
	for _, p := range queued {
		o := p.order
		o.ExpiryBatch = currentBatch + p.horizon
		out = append(out, o)
	}
	return out
}

// Pending is the number of orders waiting for a batch.
func (a *Intake) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}
