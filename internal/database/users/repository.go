// Package users provides database operations for user management.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetOrCreateUser("default")
package users

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lingoplay/core/internal/entities"
)

// Repository handles all user database operations.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// CreateUser creates a new user marked active now.
func (r *Repository) CreateUser(name string) (*entities.User, error) {
	if name == "" {
		return nil, entities.ErrEmptyName
	}

	user := &entities.User{
		Name:         name,
		LastActiveAt: r.now(),
	}
	if err := r.db.Create(user).Error; err != nil {
		return nil, entities.Unavailable("create user", err)
	}
	return user, nil
}

// GetOrCreateUser returns the user called name, creating it when absent.
func (r *Repository) GetOrCreateUser(name string) (*entities.User, error) {
	if name == "" {
		return nil, entities.ErrEmptyName
	}

	var user entities.User
	err := r.db.Where(entities.User{Name: name}).
		Attrs(entities.User{LastActiveAt: r.now()}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, entities.Unavailable("get or create user", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID, or nil when it does not exist.
func (r *Repository) GetUserByID(id uint) (*entities.User, error) {
	var user entities.User
	return r.first(&user, "get user", r.db.Where("id = ?", id))
}

// GetUserByName retrieves a user by name, or nil when it does not exist.
func (r *Repository) GetUserByName(name string) (*entities.User, error) {
	var user entities.User
	return r.first(&user, "get user by name", r.db.Where("name = ?", name))
}

// GetMostRecentlyActive returns the user with the latest last_active_at,
// ties broken by the highest id, or nil when there are no users.
func (r *Repository) GetMostRecentlyActive() (*entities.User, error) {
	var user entities.User
	return r.first(&user, "get active user", r.db.Order("last_active_at DESC, id DESC"))
}

func (r *Repository) first(user *entities.User, op string, q *gorm.DB) (*entities.User, error) {
	err := q.First(user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, entities.Unavailable(op, err)
	}
	return user, nil
}

// ListUsers returns every user ordered by id.
func (r *Repository) ListUsers() ([]entities.User, error) {
	users := []entities.User{}
	if err := r.db.Order("id ASC").Find(&users).Error; err != nil {
		return nil, entities.Unavailable("list users", err)
	}
	return users, nil
}

// Touch marks the user as the most recently active one.
func (r *Repository) Touch(userID uint) error {
	err := r.db.Model(&entities.User{}).
		Where("id = ?", userID).
		Update("last_active_at", r.now()).Error
	return entities.Unavailable("touch user", err)
}

// Restore writes users verbatim, keyed by primary key. Existing rows with
// the same id are overwritten.
func (r *Repository) Restore(users []entities.User) error {
	if len(users) == 0 {
		return nil
	}
	err := r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&users).Error
	return entities.Unavailable("restore users", err)
}
