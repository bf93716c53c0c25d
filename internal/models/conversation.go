package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Conversation is a chat thread owned by the conversation service. The
// resolver reads its messages to derive a cooking intent and links resolved
// recipes back to it.
type Conversation struct {
	gorm.Model
	UserID   uint      `gorm:"index;not null"`
	Messages []Message `gorm:"foreignKey:ConversationID"`
}

// MessageRole is the author of a conversation message.
type MessageRole string

// MessageRole enum values.
const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single entry of a conversation.
type Message struct {
	gorm.Model
	ConversationID uint        `gorm:"index;not null"`
	Role           MessageRole `gorm:"type:text"`
	Content        string      `gorm:"type:text"`
}

// StringList is a slice of strings for JSONB storage.
type StringList []string

// Scan is a GORM hook that scans jsonb into StringList.
func (j *StringList) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", value))
	}

	result := StringList{}
	err := json.Unmarshal(bytes, &result)
	*j = result

	return err
}

// Value is a GORM hook that returns json value of StringList.
func (j StringList) Value() (driver.Value, error) {
	return json.Marshal(j)
}
