package workflow

import (
	"fmt"

	"github.com/agrifocus/mandi_backend/models"
	"gorm.io/gorm"
)

// AcquirePartyPostingLock serializes invoice posting per counterparty across
// instances using MySQL advisory locks, so two concurrent writes against the
// same vendor/retailer cannot read-modify-write a stale balance.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that runs the posting transaction.
func AcquirePartyPostingLock(tx *gorm.DB, partyType models.PartyType, partyId int) error {
	lockName := fmt.Sprintf("posting:%s:%d", partyType, partyId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for %s id=%d", partyType, partyId)
	}
	return nil
}

func ReleasePartyPostingLock(tx *gorm.DB, partyType models.PartyType, partyId int) {
	lockName := fmt.Sprintf("posting:%s:%d", partyType, partyId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
