package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/big"
	"math/rand"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/batch"
	"github.com/joripage/utxo-orderbook/pkg/ingest"
	"github.com/joripage/utxo-orderbook/pkg/ledger"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
)

const (
	minPrice = 100
	maxPrice = 200
	minQty   = 1
	maxQty   = 100
)

func randomOrder(rng *rand.Rand, owners []common.Address, nonce, batchIndex uint64) utxo.Order {
	side := utxo.Buy
	if rng.Intn(2) == 0 {
		side = utxo.Sell
	}
	return utxo.Order{
		Side:        side,
		Price:       uint64(minPrice + rng.Intn(maxPrice-minPrice+1)),
		Quantity:    uint64(minQty + rng.Intn(maxQty-minQty+1)),
		Owner:       owners[rng.Intn(len(owners))],
		Nonce:       nonce,
		ExpiryBatch: batchIndex + 1 + uint64(rng.Intn(20)),
	}
}

func main() {
	var (
		batches   int
		perBatch  int
		numOwners int
		seed      int64
		csvOut    string
	)
	flag.IntVar(&batches, "batches", 100, "Number of batches to run")
	flag.IntVar(&perBatch, "orders", 1_000, "Incoming orders per batch")
	flag.IntVar(&numOwners, "owners", 50, "Distinct order owners")
	flag.Int64Var(&seed, "seed", time.Now().UnixNano(), "Random seed")
	flag.StringVar(&csvOut, "csv", "", "Write one batch of generated orders to this CSV file and exit")
	flag.Parse()

	rng := rand.New(rand.NewSource(seed))
	owners := make([]common.Address, numOwners)
	for i := range owners {
		owners[i] = common.BigToAddress(big.NewInt(int64(i + 1)))
	}

	if csvOut != "" {
		writeCSV(csvOut, rng, owners, perBatch)
		return
	}

	b := batch.NewBuilder()
	book := ledger.NewBook()
	nonce := uint64(0)

	var (
		totalFills  int
		totalVolume uint64
		totalSkips  int
		buildTime   time.Duration
	)
	for i := 0; i < batches; i++ {
		incoming := make([]utxo.Order, perBatch)
		for k := range incoming {
			nonce++
			incoming[k] = randomOrder(rng, owners, nonce, uint64(i))
		}
		existing, err := book.ProveAll(book.IDs())
		if err != nil {
			log.Fatal(err)
		}

		start := time.Now()
		out, err := b.Build(context.Background(), batch.Input{
			BatchIndex: uint64(i),
			Root:       book.Root(),
			Existing:   existing,
			Incoming:   incoming,
		}, book)
		if err != nil {
			log.Fatalf("batch %d: %v", i, err)
		}
		buildTime += time.Since(start)

		book = out.Book
		totalFills += out.Stats.Fills
		totalVolume += out.Stats.Volume
		totalSkips += out.Stats.SelfTradeSkips
		if i < 3 {
			log.Printf("batch %d: %d fills, %d live, root %s", i, out.Stats.Fills, book.Len(), book.Root().Hex())
		}
	}

	fmt.Println("--------")
	fmt.Printf("Batches           : %d\n", batches)
	fmt.Printf("Orders            : %d\n", batches*perBatch)
	fmt.Printf("Fills             : %d\n", totalFills)
	fmt.Printf("Matched quantity  : %d\n", totalVolume)
	fmt.Printf("Self-trade skips  : %d\n", totalSkips)
	fmt.Printf("Live set at end   : %d\n", book.Len())
	fmt.Printf("Build time        : %s (%s per batch)\n", buildTime, buildTime/time.Duration(max(batches, 1)))
}

func writeCSV(path string, rng *rand.Rand, owners []common.Address, n int) {
	orders := make([]utxo.Order, n)
	for i := range orders {
		orders[i] = randomOrder(rng, owners, uint64(i+1), 0)
	}
	f, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := ingest.WriteCSV(f, orders); err != nil {
		log.Fatal(err)
	}
}
