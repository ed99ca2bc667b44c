// Package ingest reads submitted orders and applies the admission rules
// before they reach a batch.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
)

var csvHeader = []string{"side", "price", "quantity", "owner", "expiry_batch"}

// ReadCSV parses at most limit orders from r, which starts with a header
// row. A limit of zero reads everything. Nonces come from nonces in file
// order.
func ReadCSV(r io.Reader, nonces NonceSource, limit int) ([]utxo.Order, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: header: %w", ErrMalformedRecord, err)
	}

	var orders []utxo.Order
	for limit <= 0 || len(orders) < limit {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
		}
		line, _ := cr.FieldPos(0)
		o, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedRecord, line, err)
		}
		o.Nonce = nonces.Next()
		orders = append(orders, o)
	}
	return orders, nil
}

func parseRecord(rec []string) (utxo.Order, error) {
	side, err := utxo.ParseSide(rec[0])
	if err != nil {
		return utxo.Order{}, err
	}
	nums := make([]uint64, 0, 3)
	for _, i := range []int{1, 2, 4} {
		v, err := strconv.ParseUint(strings.TrimSpace(rec[i]), 10, 64)
		if err != nil {
			return utxo.Order{}, fmt.Errorf("invalid %s %q", csvHeader[i], rec[i])
		}
		nums = append(nums, v)
	}
	owner := strings.TrimSpace(rec[3])
	if !common.IsHexAddress(owner) {
		return utxo.Order{}, fmt.Errorf("invalid owner address %q", owner)
	}
	return utxo.Order{
		Side:        side,
		Price:       nums[0],
		Quantity:    nums[1],
		Owner:       common.HexToAddress(owner),
		ExpiryBatch: nums[2],
	}, nil
}

// WriteCSV writes orders in the layout ReadCSV accepts. Nonces are not
// part of the file.
func WriteCSV(w io.Writer, orders []utxo.Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, o := range orders {
		err := cw.Write([]string{
			o.Side.String(),
			strconv.FormatUint(o.Price, 10),
			strconv.FormatUint(o.Quantity, 10),
			o.Owner.Hex(),
			strconv.FormatUint(o.ExpiryBatch, 10),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Admit splits orders into those passing rules and the rejects with the
// reason for each.
func Admit(orders []utxo.Order, rules Rule) (accepted []utxo.Order, rejected []error) {
	for i := range orders {
		if err := utxo.Validate(orders[i]); err != nil {
			rejected = append(rejected, err)
			continue
		}
		if err := rules.Check(&orders[i]); err != nil {
			rejected = append(rejected, err)
			continue
		}
		accepted = append(accepted, orders[i])
	}
	return accepted, rejected
}
