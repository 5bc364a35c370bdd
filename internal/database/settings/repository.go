// Package settings provides database operations for per-user settings.
//
// # Usage
//
//	repo := settings.NewRepository(db)
//	ctx, err := repo.GetUserContext()
//	err = repo.SaveSetting(ctx.UserID, entities.SettingKeyLanguage, "Spanish")
package settings

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lingoplay/core/internal/database/users"
	"github.com/lingoplay/core/internal/entities"
)

// defaults are created on first read when a user has no row for the key.
var defaults = []struct {
	key   string
	value string
}{
	{entities.SettingKeyLanguage, entities.DefaultLanguage},
	{entities.SettingKeyDifficulty, entities.DefaultDifficulty},
}

// Repository handles all settings database operations.
type Repository struct {
	db    *gorm.DB
	users *users.Repository
}

// NewRepository creates a new settings repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, users: users.NewRepository(db)}
}

// GetUserContext resolves the most recently active user and its language
// and difficulty. It returns nil when there are no users.
func (r *Repository) GetUserContext() (*entities.UserContext, error) {
	user, err := r.users.GetMostRecentlyActive()
	if err != nil || user == nil {
		return nil, err
	}
	return r.contextFor(user)
}

// GetUserContextFor is GetUserContext for a specific user. It returns nil
// when the user does not exist.
func (r *Repository) GetUserContextFor(userID uint) (*entities.UserContext, error) {
	user, err := r.users.GetUserByID(userID)
	if err != nil || user == nil {
		return nil, err
	}
	return r.contextFor(user)
}

func (r *Repository) contextFor(user *entities.User) (*entities.UserContext, error) {
	values := make(map[string]string, len(defaults))
	for _, d := range defaults {
		var setting entities.UserSetting
		err := r.db.Where(entities.UserSetting{UserID: user.ID, Key: d.key}).
			Attrs(entities.UserSetting{Value: d.value}).
			FirstOrCreate(&setting).Error
		if err != nil {
			return nil, entities.Unavailable("ensure default setting", err)
		}
		values[d.key] = setting.Value
	}

	return &entities.UserContext{
		Username: user.Name,
		UserID:   user.ID,
		Settings: entities.UserPreferences{
			Language:   values[entities.SettingKeyLanguage],
			Difficulty: values[entities.SettingKeyDifficulty],
		},
	}, nil
}

// SaveSetting inserts or replaces the value stored under (userID, key).
func (r *Repository) SaveSetting(userID uint, key, value string) error {
	setting := entities.UserSetting{UserID: userID, Key: key, Value: value}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	return entities.Unavailable("save setting", err)
}

// GetSetting returns the value stored under (userID, key) and whether it
// exists.
func (r *Repository) GetSetting(userID uint, key string) (string, bool, error) {
	var setting entities.UserSetting
	err := r.db.Where("user_id = ? AND key = ?", userID, key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, entities.Unavailable("get setting", err)
	}
	return setting.Value, true, nil
}

// GetSettings returns every key/value pair of a user.
func (r *Repository) GetSettings(userID uint) (map[string]string, error) {
	var rows []entities.UserSetting
	if err := r.db.Where("user_id = ?", userID).Order("key ASC").Find(&rows).Error; err != nil {
		return nil, entities.Unavailable("get settings", err)
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}

// DeleteSetting removes a setting. Deleting a missing key is not an error.
func (r *Repository) DeleteSetting(userID uint, key string) error {
	err := r.db.Where("user_id = ? AND key = ?", userID, key).Delete(&entities.UserSetting{}).Error
	return entities.Unavailable("delete setting", err)
}

// ListAll returns every setting row of every user.
func (r *Repository) ListAll() ([]entities.UserSetting, error) {
	rows := []entities.UserSetting{}
	if err := r.db.Order("user_id ASC, key ASC").Find(&rows).Error; err != nil {
		return nil, entities.Unavailable("list settings", err)
	}
	return rows, nil
}

// Restore upserts rows keyed by (user_id, key). Row ids are not kept.
func (r *Repository) Restore(rows []entities.UserSetting) error {
	if len(rows) == 0 {
		return nil
	}
	fresh := make([]entities.UserSetting, len(rows))
	for i, row := range rows {
		fresh[i] = entities.UserSetting{UserID: row.UserID, Key: row.Key, Value: row.Value}
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&fresh).Error
	return entities.Unavailable("restore settings", err)
}
