package models

import (
	"fmt"
	"strings"
	"time"
)

type User struct {
	BaseModel
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	Email       string `json:"email" validate:"required,email" gorm:"not null;index"`
	PhoneNumber string `json:"phone_number,omitempty"`
	IsCarer     bool   `json:"is_carer"`
	IsOnline    bool   `json:"is_online"`

	// Last reported location, decimal degrees. Replaced wholesale on every
	// presence report, never mutated piecemeal.
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// ConnectedUserID points to the user's current partner, nil while
	// unpaired. Mutated only through PairUser/UnpairUser.
	ConnectedUserID *uint `json:"connected_user_id,omitempty"`

	DeviceToken string    `json:"device_token,omitempty"`
	LastSeenAt  time.Time `json:"last_seen_at,omitempty"`
}

// FullName is the user's display name. Names are stored as entered, so each
// part is title-cased here before it rides in payloads or SMS bodies.
func (user *User) FullName() string {
	return fmt.Sprintf("%v %v", strings.Title(user.FirstName), strings.Title(user.LastName))
}

func (store *Store) FindUserByID(id uint) (*User, error) {
	user := User{}
	err := store.db.First(&user, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr(err)
	}

	return &user, nil
}

// FirstUserByEmail returns the record with the lowest id among those sharing
// 'email'. Duplicate emails are not deduplicated - first match wins.
func (store *Store) FirstUserByEmail(email string) (*User, error) {
	user := User{}
	err := store.db.Order("id").First(&user, "email = ?", email).Error
	if err != nil {
		return nil, notFoundOr(err)
	}

	return &user, nil
}

func (store *Store) CreateUser(user *User) error {
	return store.db.Create(user).Error
}

// UsersWithinBounds runs the approximate stage of the geo query: a range scan
// over latitude/longitude with equality filters on the carer & online flags.
// Corner false-positives are expected; callers apply the precise distance
// filter afterwards.
func (store *Store) UsersWithinBounds(minLat, maxLat, minLon, maxLon float64, isCarer, isOnline bool) ([]User, error) {
	users := []User{}

	err := store.db.Where(
		"latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ? AND is_carer = ? AND is_online = ?",
		minLat, maxLat, minLon, maxLon, isCarer, isOnline).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	return users, nil
}

// PairUser sets the user's partner only while the pairing field is still
// null, so a concurrently-established pairing is never overwritten. The
// rows-affected count reports whether this call won the field.
func (store *Store) PairUser(userID, partnerID uint) (bool, error) {
	res := store.db.Model(&User{}).
		Where("id = ? AND connected_user_id IS NULL", userID).
		Update("connected_user_id", partnerID)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// UnpairUser clears the pairing field only while it still points at
// 'partnerID', which makes disconnect idempotent and safe to race.
func (store *Store) UnpairUser(userID, partnerID uint) (bool, error) {
	res := store.db.Model(&User{}).
		Where("id = ? AND connected_user_id = ?", userID, partnerID).
		Update("connected_user_id", nil)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// UpdatePresence records a client presence report - online flag plus the
// wholesale-replaced location - and stamps last_seen_at for the sweeper.
func (store *Store) UpdatePresence(userID uint, isOnline bool, latitude, longitude float64) error {
	res := store.db.Model(&User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"is_online":    isOnline,
		"latitude":     latitude,
		"longitude":    longitude,
		"last_seen_at": time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkStaleUsersOffline flips users offline whose last presence report is
// older than 'cutoff', so they stop matching as candidates.
func (store *Store) MarkStaleUsersOffline(cutoff time.Time) (int64, error) {
	res := store.db.Model(&User{}).
		Where("is_online = ? AND last_seen_at < ?", true, cutoff).
		Update("is_online", false)

	return res.RowsAffected, res.Error
}
