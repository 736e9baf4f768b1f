// Package localdb keeps client state on disk: the last opened conversation,
// UI preferences and a mirror of conversations used when the backend is down.
package localdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"multichat/internal/model"
	"multichat/internal/store"
)

const (
	keyLastConversation = "last_conversation_id"
	keyTheme            = "theme"
)

type conversationRow struct {
	ID           string `gorm:"primaryKey"`
	Title        string
	Model        string
	SystemPrompt string `gorm:"type:text"`
	Draft        bool
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"index;autoUpdateTime:false"`
}

func (conversationRow) TableName() string { return "conversations" }

type messageRow struct {
	ConversationID string `gorm:"primaryKey"`
	Position       int    `gorm:"primaryKey;autoIncrement:false"`
	ID             string
	Role           string
	Content        string `gorm:"type:text"`
	Model          string
	Citations      string `gorm:"type:text"`
	Timestamp      time.Time
}

func (messageRow) TableName() string { return "messages" }

type settingRow struct {
	Name  string `gorm:"primaryKey"`
	Value string
}

func (settingRow) TableName() string { return "settings" }

// DB 是本地 sqlite 数据库，实现 store.Mirror 和 store.Preferences
type DB struct {
	db *gorm.DB
}

var (
	_ store.Mirror      = (*DB)(nil)
	_ store.Preferences = (*DB)(nil)
)

// Open 打开（必要时创建）path 处的数据库并迁移表结构
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local db: %w", err)
	}
	if err := db.AutoMigrate(&conversationRow{}, &messageRow{}, &settingRow{}); err != nil {
		return nil, fmt.Errorf("migrate local db: %w", err)
	}

	log.Debug().Str("path", path).Msg("local db opened")
	return &DB{db: db}, nil
}

// Close 关闭底层连接
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LoadConversations 读取全部镜像会话（含消息），按更新时间倒序
func (d *DB) LoadConversations(ctx context.Context) ([]store.Conversation, error) {
	var rows []conversationRow
	if err := d.db.WithContext(ctx).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}

	var msgs []messageRow
	if err := d.db.WithContext(ctx).Order("conversation_id, position").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	byConv := make(map[string][]store.Message, len(rows))
	for _, m := range msgs {
		byConv[m.ConversationID] = append(byConv[m.ConversationID], m.toMessage())
	}

	out := make([]store.Conversation, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.Conversation{
			ID:           r.ID,
			Title:        r.Title,
			Model:        model.ModelID(r.Model),
			SystemPrompt: r.SystemPrompt,
			Draft:        r.Draft,
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
			Messages:     byConv[r.ID],
		})
	}
	return out, nil
}

// SaveConversation 插入或更新会话；conv.Messages 为 nil 时保留已存消息
func (d *DB) SaveConversation(ctx context.Context, conv store.Conversation) error {
	row := conversationRow{
		ID:           conv.ID,
		Title:        conv.Title,
		Model:        string(conv.Model),
		SystemPrompt: conv.SystemPrompt,
		Draft:        conv.Draft,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("save conversation: %w", err)
		}
		if conv.Messages == nil {
			return nil
		}

		if err := tx.Where("conversation_id = ?", conv.ID).Delete(&messageRow{}).Error; err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}
		if len(conv.Messages) == 0 {
			return nil
		}
		rows := make([]messageRow, 0, len(conv.Messages))
		for i, m := range conv.Messages {
			r, err := newMessageRow(conv.ID, i, m)
			if err != nil {
				return err
			}
			rows = append(rows, r)
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("save messages: %w", err)
		}
		return nil
	})
}

// DeleteConversation 删除会话及其消息，不存在时不报错
func (d *DB) DeleteConversation(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&messageRow{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&conversationRow{}).Error
	})
}

// LastConversationID 返回上次打开的会话 id，未记录时为空
func (d *DB) LastConversationID(ctx context.Context) (string, error) {
	return d.setting(ctx, keyLastConversation)
}

// SetLastConversationID 记录当前会话 id
func (d *DB) SetLastConversationID(ctx context.Context, id string) error {
	return d.setSetting(ctx, keyLastConversation, id)
}

// Theme 返回保存的主题，未设置时为空
func (d *DB) Theme(ctx context.Context) (string, error) {
	return d.setting(ctx, keyTheme)
}

// SetTheme 保存主题
func (d *DB) SetTheme(ctx context.Context, theme string) error {
	return d.setSetting(ctx, keyTheme, theme)
}

func (d *DB) setting(ctx context.Context, key string) (string, error) {
	var row settingRow
	err := d.db.WithContext(ctx).Where("name = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return row.Value, nil
}

func (d *DB) setSetting(ctx context.Context, key, value string) error {
	row := settingRow{Name: key, Value: value}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

func newMessageRow(convID string, pos int, m store.Message) (messageRow, error) {
	citations := ""
	if len(m.Citations) > 0 {
		b, err := json.Marshal(m.Citations)
		if err != nil {
			return messageRow{}, fmt.Errorf("encode citations: %w", err)
		}
		citations = string(b)
	}
	return messageRow{
		ID:             m.ID,
		ConversationID: convID,
		Position:       pos,
		Role:           string(m.Role),
		Content:        m.Content,
		Model:          string(m.Model),
		Citations:      citations,
		Timestamp:      m.Timestamp,
	}, nil
}

func (r messageRow) toMessage() store.Message {
	msg := store.Message{
		ID:        r.ID,
		Role:      model.Role(r.Role),
		Content:   r.Content,
		Timestamp: r.Timestamp,
		Model:     model.ModelID(r.Model),
	}
	if r.Citations != "" {
		if err := json.Unmarshal([]byte(r.Citations), &msg.Citations); err != nil {
			log.Warn().Err(err).Str("message_id", r.ID).Msg("dropping unreadable citations")
			msg.Citations = nil
		}
	}
	return msg
}
