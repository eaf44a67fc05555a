package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/chatwave/chatwave/internal/config"
	"github.com/chatwave/chatwave/internal/storage"
)

// Store is a GORM-backed SQLite implementation of storage.Store.
type Store struct {
	db *gorm.DB
}

type messageModel struct {
	ID         uint   `gorm:"primaryKey"`
	Room       string `gorm:"uniqueIndex:idx_room_seq;index"`
	Seq        int64  `gorm:"uniqueIndex:idx_room_seq"`
	Author     string
	Role       string
	Kind       string
	Content    string
	Attachment string
	CreatedAt  time.Time
}

type roomModel struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex"`
	Description string
	CreatedBy   string
	CreatedAt   time.Time
}

type userModel struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"uniqueIndex"`
	Password  string
	Role      string
	Badge     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewStore opens a SQLite database at the provided path.
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate applies schema updates.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&messageModel{}, &roomModel{}, &userModel{})
}

// Append assigns the next per-room sequence inside a transaction and
// persists the message. A failed transaction consumes no sequence number,
// keeping the per-room sequence gapless.
func (s *Store) Append(ctx context.Context, msg *storage.Message) (int64, error) {
	if msg == nil {
		return 0, errors.New("nil message")
	}

	var seq int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int64
		if err := tx.Model(&messageModel{}).
			Where("room = ?", msg.Room).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		seq = last + 1
		model := messageModel{
			Room:       msg.Room,
			Seq:        seq,
			Author:     msg.Author,
			Role:       msg.Role,
			Kind:       msg.Kind,
			Content:    msg.Content,
			Attachment: msg.Attachment,
			CreatedAt:  msg.CreatedAt,
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return 0, err
	}
	msg.Seq = seq
	return seq, nil
}

// History returns up to limit messages oldest-first, optionally restricted
// to sequence numbers below beforeSeq.
func (s *Store) History(ctx context.Context, room string, limit int, beforeSeq int64) ([]storage.Message, error) {
	query := s.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("room = ?", room)
	if beforeSeq > 0 {
		query = query.Where("seq < ?", beforeSeq)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []messageModel
	if err := query.Order("seq DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	messages := make([]storage.Message, len(models))
	for i, model := range models {
		messages[len(models)-1-i] = storage.Message{
			Room:       model.Room,
			Author:     model.Author,
			Role:       model.Role,
			Kind:       model.Kind,
			Content:    model.Content,
			Attachment: model.Attachment,
			Seq:        model.Seq,
			CreatedAt:  model.CreatedAt,
		}
	}
	return messages, nil
}

// CreateRoom stores a new room record.
func (s *Store) CreateRoom(ctx context.Context, room *storage.Room) error {
	if room == nil {
		return errors.New("nil room")
	}
	if _, err := s.GetRoom(ctx, room.Name); err == nil {
		return storage.ErrRoomExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	model := roomModel{
		Name:        room.Name,
		Description: room.Description,
		CreatedBy:   room.CreatedBy,
		CreatedAt:   room.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetRoom retrieves a room by name.
func (s *Store) GetRoom(ctx context.Context, name string) (*storage.Room, error) {
	var model roomModel
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &storage.Room{
		Name:        model.Name,
		Description: model.Description,
		CreatedBy:   model.CreatedBy,
		CreatedAt:   model.CreatedAt,
	}, nil
}

// ListRooms returns all room records ordered by name.
func (s *Store) ListRooms(ctx context.Context) ([]storage.Room, error) {
	var models []roomModel
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	rooms := make([]storage.Room, len(models))
	for i, model := range models {
		rooms[i] = storage.Room{
			Name:        model.Name,
			Description: model.Description,
			CreatedBy:   model.CreatedBy,
			CreatedAt:   model.CreatedAt,
		}
	}
	return rooms, nil
}

// CreateUser stores a new user record.
func (s *Store) CreateUser(ctx context.Context, user *storage.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	model := userModel{
		Username:  user.Username,
		Password:  user.Password,
		Role:      user.Role,
		Badge:     user.Badge,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*storage.User, error) {
	var model userModel
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &storage.User{
		Username:  model.Username,
		Password:  model.Password,
		Role:      model.Role,
		Badge:     model.Badge,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}
