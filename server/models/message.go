package models

import (
	"github.com/google/uuid"
)

// Message is a persisted chat message. Creating one is what triggers the
// chat notification to the receiver.
type Message struct {
	BaseModel
	UID        string `json:"uid" gorm:"not null;uniqueIndex"`
	SenderID   uint   `json:"sender_id" gorm:"not null;index"`
	ReceiverID uint   `json:"receiver_id" gorm:"not null;index" validate:"required"`
	Text       string `json:"text" validate:"required"`
}

func (store *Store) CreateMessage(message *Message) error {
	if message.UID == "" {
		message.UID = uuid.NewString()
	}

	return store.db.Create(message).Error
}

func (store *Store) FindMessageByUID(uid string) (*Message, error) {
	message := Message{}
	err := store.db.First(&message, "uid = ?", uid).Error
	if err != nil {
		return nil, notFoundOr(err)
	}

	return &message, nil
}
