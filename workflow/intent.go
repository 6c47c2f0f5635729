package workflow

import (
	"github.com/agrifocus/mandi_backend/config"
	"github.com/agrifocus/mandi_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type BalanceField string

const (
	BalanceFieldVendorPayable     BalanceField = "vendor_payable"
	BalanceFieldVendorCrates      BalanceField = "vendor_crates"
	BalanceFieldRetailerUdhaar    BalanceField = "retailer_udhaar"
	BalanceFieldRetailerShortfall BalanceField = "retailer_shortfall"
	BalanceFieldRetailerCrates    BalanceField = "retailer_crates"
)

type BalanceDelta struct {
	Field   BalanceField
	PartyId int
	Amount  decimal.Decimal
}

type StockDelta struct {
	ItemId int
	Kgs    decimal.Decimal
	Crates decimal.Decimal
	Boxes  decimal.Decimal
}

type CrateOpAction string

const (
	CrateOpCreate CrateOpAction = "create"
	CrateOpUpdate CrateOpAction = "update"
	CrateOpDelete CrateOpAction = "delete"
)

type CrateOp struct {
	Action      CrateOpAction
	Transaction models.CrateTransaction
}

// WriteIntent is the single write unit an invoice lifecycle event hands to
// the applier: balance deltas, stock deltas and at most one crate-ledger
// operation, applied atomically inside the caller's transaction.
type WriteIntent struct {
	BalanceDeltas []BalanceDelta
	StockDeltas   []StockDelta
	CrateOp       *CrateOp
}

// Reversed negates every delta. The crate operation does not reverse
// mechanically (a created row is removed, not negated), so callers attach
// the correct crate op explicitly.
func (w WriteIntent) Reversed() WriteIntent {
	reversed := WriteIntent{}
	for _, bd := range w.BalanceDeltas {
		reversed.BalanceDeltas = append(reversed.BalanceDeltas, BalanceDelta{
			Field:   bd.Field,
			PartyId: bd.PartyId,
			Amount:  bd.Amount.Neg(),
		})
	}
	for _, sd := range w.StockDeltas {
		reversed.StockDeltas = append(reversed.StockDeltas, StockDelta{
			ItemId: sd.ItemId,
			Kgs:    sd.Kgs.Neg(),
			Crates: sd.Crates.Neg(),
			Boxes:  sd.Boxes.Neg(),
		})
	}
	return reversed
}

// MergeIntents compacts several intents into one, combining deltas that hit
// the same ledger row so an edit applies a single net delta per row.
func MergeIntents(intents ...WriteIntent) WriteIntent {
	merged := WriteIntent{}
	balanceIndex := make(map[BalanceField]map[int]int)
	stockIndex := make(map[int]int)

	for _, intent := range intents {
		for _, bd := range intent.BalanceDeltas {
			byParty, ok := balanceIndex[bd.Field]
			if !ok {
				byParty = make(map[int]int)
				balanceIndex[bd.Field] = byParty
			}
			if i, ok := byParty[bd.PartyId]; ok {
				merged.BalanceDeltas[i].Amount = merged.BalanceDeltas[i].Amount.Add(bd.Amount)
			} else {
				byParty[bd.PartyId] = len(merged.BalanceDeltas)
				merged.BalanceDeltas = append(merged.BalanceDeltas, bd)
			}
		}
		for _, sd := range intent.StockDeltas {
			if i, ok := stockIndex[sd.ItemId]; ok {
				merged.StockDeltas[i].Kgs = merged.StockDeltas[i].Kgs.Add(sd.Kgs)
				merged.StockDeltas[i].Crates = merged.StockDeltas[i].Crates.Add(sd.Crates)
				merged.StockDeltas[i].Boxes = merged.StockDeltas[i].Boxes.Add(sd.Boxes)
			} else {
				stockIndex[sd.ItemId] = len(merged.StockDeltas)
				merged.StockDeltas = append(merged.StockDeltas, sd)
			}
		}
		if intent.CrateOp != nil {
			merged.CrateOp = intent.CrateOp
		}
	}
	return merged
}

// ApplyWriteIntent applies the intent inside tx. Every step locks its ledger
// row first; any error aborts the whole operation so the caller rolls back
// with no partial writes.
func ApplyWriteIntent(tx *gorm.DB, logger *logrus.Logger, intent WriteIntent) error {

	for _, bd := range intent.BalanceDeltas {
		if bd.Amount.IsZero() {
			continue
		}
		var err error
		switch bd.Field {
		case BalanceFieldVendorPayable:
			if _, err = models.LockVendor(tx, bd.PartyId); err == nil {
				err = models.AddVendorBalance(tx, bd.PartyId, bd.Amount)
			}
		case BalanceFieldVendorCrates:
			if _, err = models.LockVendor(tx, bd.PartyId); err == nil {
				err = models.AddVendorCrateBalance(tx, bd.PartyId, bd.Amount)
			}
		case BalanceFieldRetailerUdhaar:
			if _, err = models.LockRetailer(tx, bd.PartyId); err == nil {
				err = models.AddRetailerUdhaarBalance(tx, bd.PartyId, bd.Amount)
			}
		case BalanceFieldRetailerShortfall:
			if _, err = models.LockRetailer(tx, bd.PartyId); err == nil {
				err = models.AddRetailerShortfallBalance(tx, bd.PartyId, bd.Amount)
			}
		case BalanceFieldRetailerCrates:
			if _, err = models.LockRetailer(tx, bd.PartyId); err == nil {
				err = models.AddRetailerCrateBalance(tx, bd.PartyId, bd.Amount)
			}
		}
		if err != nil {
			config.LogError(logger, "intent.go", "ApplyWriteIntent", "BalanceDelta", bd, err)
			return err
		}
	}

	for _, sd := range intent.StockDeltas {
		if sd.Kgs.IsZero() && sd.Crates.IsZero() && sd.Boxes.IsZero() {
			continue
		}
		if err := models.AddStockQuantities(tx, sd.ItemId, sd.Kgs, sd.Crates, sd.Boxes); err != nil {
			config.LogError(logger, "intent.go", "ApplyWriteIntent", "StockDelta", sd, err)
			return err
		}
	}

	if intent.CrateOp != nil {
		if err := applyCrateOp(tx, intent.CrateOp); err != nil {
			config.LogError(logger, "intent.go", "ApplyWriteIntent", "CrateOp", intent.CrateOp, err)
			return err
		}
	}
	return nil
}

func applyCrateOp(tx *gorm.DB, op *CrateOp) error {
	switch op.Action {
	case CrateOpCreate:
		return tx.Create(&op.Transaction).Error
	case CrateOpUpdate:
		return tx.Model(&models.CrateTransaction{}).Where("id = ?", op.Transaction.ID).
			Updates(map[string]interface{}{
				"party_type":       op.Transaction.PartyType,
				"party_id":         op.Transaction.PartyId,
				"transaction_type": op.Transaction.TransactionType,
				"quantity":         op.Transaction.Quantity,
				"transaction_date": op.Transaction.TransactionDate,
			}).Error
	case CrateOpDelete:
		// Explicit removal; leaving the linked row behind would orphan it.
		return tx.Delete(&models.CrateTransaction{}, op.Transaction.ID).Error
	}
	return nil
}
