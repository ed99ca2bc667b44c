package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joripage/utxo-orderbook/pkg/journal"
	"github.com/shopspring/decimal"
)

// Batch is the archived summary of one accepted batch.
type Batch struct {
	BatchIndex    uint64          `gorm:"primaryKey;autoIncrement:false"`
	OldRoot       string          `gorm:"size:66;not null"`
	NewRoot       string          `gorm:"size:66;not null"`
	JournalDigest string          `gorm:"size:66;not null;uniqueIndex"`
	FillCount     int             `gorm:"not null"`
	ConsumedCount int             `gorm:"not null"`
	CreatedCount  int             `gorm:"not null"`
	Volume        decimal.Decimal `gorm:"type:numeric;not null"`
	CreatedAt     time.Time
}

func (Batch) TableName() string {
	return "batches"
}

// Fill is one archived fill, keyed by batch and position.
type Fill struct {
	BatchIndex    uint64          `gorm:"primaryKey;autoIncrement:false"`
	Seq           int             `gorm:"primaryKey;autoIncrement:false"`
	MakerUTXOID   string          `gorm:"column:maker_utxo_id;size:66;not null"`
	TakerUTXOID   string          `gorm:"column:taker_utxo_id;size:66;not null"`
	Maker         string          `gorm:"size:42;not null;index"`
	Taker         string          `gorm:"size:42;not null;index"`
	Price         decimal.Decimal `gorm:"type:numeric;not null"`
	Quantity      decimal.Decimal `gorm:"type:numeric;not null"`
	MakerIsSeller bool            `gorm:"not null"`
}

func (Fill) TableName() string {
	return "fills"
}

func u64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// FromJournal maps an accepted journal to its archive rows.
func FromJournal(j *journal.Journal, oldRoot, digest common.Hash) (*Batch, []*Fill) {
	b := &Batch{
		BatchIndex:    j.BatchIndex,
		OldRoot:       oldRoot.Hex(),
		NewRoot:       j.NewUTXOMerkleRoot.Hex(),
		JournalDigest: digest.Hex(),
		FillCount:     len(j.Fills),
		ConsumedCount: len(j.ConsumedUTXOIDs),
		CreatedCount:  len(j.NewUTXOs),
		Volume:        u64(j.Volume()),
	}
	fills := make([]*Fill, 0, len(j.Fills))
	for i, f := range j.Fills {
		fills = append(fills, &Fill{
			BatchIndex:    j.BatchIndex,
			Seq:           i,
			MakerUTXOID:   f.MakerUTXOID.Hex(),
			TakerUTXOID:   f.TakerUTXOID.Hex(),
			Maker:         f.Maker.Hex(),
			Taker:         f.Taker.Hex(),
			Price:         u64(f.Price),
			Quantity:      u64(f.Quantity),
			MakerIsSeller: f.MakerIsSeller,
		})
	}
	return b, fills
}
