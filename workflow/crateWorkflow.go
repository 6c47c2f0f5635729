package workflow

import (
	"github.com/agrifocus/mandi_backend/models"
	"github.com/agrifocus/mandi_backend/utils"
)

func crateBalanceField(partyType models.PartyType) BalanceField {
	if partyType == models.PartyTypeVendor {
		return BalanceFieldVendorCrates
	}
	return BalanceFieldRetailerCrates
}

// BuildCrateOp resolves the crate-transaction toggle for an invoice write.
// Three edit cases: enabled where none existed (create), enabled and changed
// (update), was enabled and now disabled (explicit delete, never a silent
// skip). Returns the op, nil when there is nothing to do, plus the
// crate-balance deltas the toggle implies.
func BuildCrateOp(referenceType models.CrateReferenceType, referenceId int, partyType models.PartyType, partyId int,
	old *models.CrateTransaction, input *models.NewCrateTransaction) (*CrateOp, []BalanceDelta) {

	field := crateBalanceField(partyType)

	if old == nil && input == nil {
		return nil, nil
	}

	if old == nil {
		quantity := utils.SanitizeAmount(input.Quantity)
		op := &CrateOp{
			Action: CrateOpCreate,
			Transaction: models.CrateTransaction{
				PartyType:       partyType,
				PartyId:         partyId,
				TransactionType: input.TransactionType,
				Quantity:        quantity,
				TransactionDate: input.TransactionDate,
				ReferenceType:   referenceType,
				ReferenceId:     referenceId,
			},
		}
		return op, []BalanceDelta{{
			Field:   field,
			PartyId: partyId,
			Amount:  models.CrateCustodyEffect(input.TransactionType, quantity),
		}}
	}

	if input == nil {
		op := &CrateOp{
			Action:      CrateOpDelete,
			Transaction: *old,
		}
		return op, []BalanceDelta{{
			Field:   field,
			PartyId: old.PartyId,
			Amount:  models.CrateCustodyEffect(old.TransactionType, old.Quantity).Neg(),
		}}
	}

	quantity := utils.SanitizeAmount(input.Quantity)
	updated := *old
	updated.PartyType = partyType
	updated.PartyId = partyId
	updated.TransactionType = input.TransactionType
	updated.Quantity = quantity
	updated.TransactionDate = input.TransactionDate
	op := &CrateOp{
		Action:      CrateOpUpdate,
		Transaction: updated,
	}
	if old.PartyType != partyType || old.PartyId != partyId {
		// The invoice moved to another party; custody moves with it.
		return op, []BalanceDelta{
			{
				Field:   crateBalanceField(old.PartyType),
				PartyId: old.PartyId,
				Amount:  models.CrateCustodyEffect(old.TransactionType, old.Quantity).Neg(),
			},
			{
				Field:   field,
				PartyId: partyId,
				Amount:  models.CrateCustodyEffect(input.TransactionType, quantity),
			},
		}
	}
	delta := models.CrateCustodyEffect(input.TransactionType, quantity).
		Sub(models.CrateCustodyEffect(old.TransactionType, old.Quantity))
	return op, []BalanceDelta{{
		Field:   field,
		PartyId: old.PartyId,
		Amount:  delta,
	}}
}
