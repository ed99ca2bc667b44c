package ingest

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `side,price,quantity,owner,expiry_batch
buy,100,5,0x853e3dC3005b83db47B21d6532F3c5500E970d8F,10
SELL, 95, 2, 0xf841c5bba73Fa25AE775B0a3a2D816d06B044070, 12
Sell,99,1,0xf841c5bba73Fa25AE775B0a3a2D816d06B044070,12
`

func TestReadCSV(t *testing.T) {
	orders, err := ReadCSV(strings.NewReader(sample), NewCounterNonce(7), 0)
	require.NoError(t, err)
	require.Len(t, orders, 3)

	assert.Equal(t, utxo.Order{
		Side:        utxo.Buy,
		Price:       100,
		Quantity:    5,
		Owner:       common.HexToAddress("0x853e3dC3005b83db47B21d6532F3c5500E970d8F"),
		Nonce:       7,
		ExpiryBatch: 10,
	}, orders[0])
	assert.Equal(t, utxo.Sell, orders[1].Side)
	assert.Equal(t, uint64(95), orders[1].Price)
	assert.Equal(t, uint64(9), orders[2].Nonce)
}

func TestReadCSVLimit(t *testing.T) {
	orders, err := ReadCSV(strings.NewReader(sample), NewCounterNonce(1), 2)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestReadCSVMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"bad side":  "side,price,quantity,owner,expiry_batch\nhold,1,1,0x853e3dC3005b83db47B21d6532F3c5500E970d8F,1\n",
		"bad price": "side,price,quantity,owner,expiry_batch\nbuy,-1,1,0x853e3dC3005b83db47B21d6532F3c5500E970d8F,1\n",
		"bad owner": "side,price,quantity,owner,expiry_batch\nbuy,1,1,alice,1\n",
		"short row": "side,price,quantity,owner,expiry_batch\nbuy,1,1\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(body), NewCounterNonce(1), 0)
			require.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	orders, err := ReadCSV(strings.NewReader(sample), NewCounterNonce(1), 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, orders))
	again, err := ReadCSV(&buf, NewCounterNonce(1), 0)
	require.NoError(t, err)
	assert.Equal(t, orders, again)
}

func TestClockNonceMonotonic(t *testing.T) {
	fixed := time.Unix(0, 1_000)
	c := &ClockNonce{now: func() time.Time { return fixed }}
	assert.Equal(t, uint64(1_000), c.Next())
	assert.Equal(t, uint64(1_001), c.Next())
	assert.Equal(t, uint64(1_002), c.Next())

	wall := NewClockNonce()
	a, b := wall.Next(), wall.Next()
	assert.Less(t, a, b)
}

func TestRules(t *testing.T) {
	rules := NewRules(&RuleConfig{
		MinQuantity: 1,
		MaxQuantity: 100,
		MinPrice:    10,
		MaxPrice:    1000,
		TickSizes: []TickStep{
			{MaxPrice: 100, Step: 1},
			{MaxPrice: 0, Step: 5},
		},
	})

	ok := utxo.Order{Side: utxo.Buy, Price: 105, Quantity: 3}
	require.NoError(t, rules.Check(&ok))

	for name, o := range map[string]utxo.Order{
		"too large":     {Side: utxo.Buy, Price: 50, Quantity: 101},
		"below floor":   {Side: utxo.Buy, Price: 9, Quantity: 1},
		"above ceil":    {Side: utxo.Buy, Price: 1005, Quantity: 1},
		"off tick":      {Side: utxo.Sell, Price: 102, Quantity: 1},
		"zero quantity": {Side: utxo.Sell, Price: 50},
	} {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, rules.Check(&o), ErrRuleViolation)
		})
	}
}

func TestAdmit(t *testing.T) {
	orders := []utxo.Order{
		{Side: utxo.Buy, Price: 100, Quantity: 1},
		{Side: utxo.Buy, Price: 100, Quantity: 0},
		{Side: 3, Price: 100, Quantity: 1},
		{Side: utxo.Sell, Price: 5000, Quantity: 1},
	}
	accepted, rejected := Admit(orders, NewRules(&RuleConfig{MaxPrice: 1000}))
	assert.Len(t, accepted, 1)
	require.Len(t, rejected, 3)
	assert.ErrorIs(t, rejected[0], utxo.ErrInvalidOrder)
	assert.ErrorIs(t, rejected[2], ErrRuleViolation)
}
