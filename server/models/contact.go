package models

import (
	"errors"

	"gorm.io/gorm"
)

var ErrDuplicateContact = errors.New("contact already exists")

// Contact is one directed half of the symmetric contact relation. Each edge
// is stored twice - once under each user - so either side's contact list is
// independently queryable.
type Contact struct {
	BaseModel
	UserID    uint `json:"user_id" gorm:"not null;uniqueIndex:idx_contact_edge"`
	ContactID uint `json:"contact_id" gorm:"not null;uniqueIndex:idx_contact_edge"`
}

func (store *Store) HasContact(userID, contactID uint) (bool, error) {
	var count int64
	err := store.db.Model(&Contact{}).
		Where("user_id = ? AND contact_id = ?", userID, contactID).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// AddContactPair creates both directed entries of the edge in one
// transaction. Contact edges are never updated or deleted.
func (store *Store) AddContactPair(userID, contactID uint) error {
	has, err := store.HasContact(userID, contactID)
	if err != nil {
		return err
	}

	if has {
		return ErrDuplicateContact
	}

	return store.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&Contact{UserID: userID, ContactID: contactID}).Error; err != nil {
			return err
		}

		return tx.Create(&Contact{UserID: contactID, ContactID: userID}).Error
	})
}

// ContactsOf resolves the user's contact edges into full user records.
func (store *Store) ContactsOf(userID uint) ([]User, error) {
	users := []User{}

	err := store.db.
		Joins("INNER JOIN contacts ON contacts.contact_id = users.id AND contacts.user_id = ?", userID).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	return users, nil
}
