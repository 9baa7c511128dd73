package model

import "time"

// Entity registration list. Order matters for autogenerated create
// statements: referenced tables first.
func init() {
	Register(
		&User{},
		&Transaction{},
		&BudgetRule{},
		&Conversation{},
		&ChatMessage{},
		&BlacklistedToken{},
	)
}

// Transaction types and sources.
const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"

	SourceManual    = "manual"
	SourceCSVUpload = "csv_upload"
	SourceBankAPI   = "bank_api"
)

// Budget periods.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

// Chat message roles and statuses.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"

	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

type User struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Username      string   `gorm:"size:50;uniqueIndex;not null"`
	Email         string   `gorm:"size:100;uniqueIndex;not null"`
	Password      string   `gorm:"size:255;not null"`
	Currency      string   `gorm:"size:3;not null;default:USD"`
	MonthlyIncome *float64 `gorm:"type:numeric(12,2)"`
	SavingsGoal   *float64 `gorm:"type:numeric(12,2)"`
}

type Transaction struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID       string   `gorm:"not null;index"`
	Amount       float64  `gorm:"type:numeric(12,2);not null"`
	Type         string   `gorm:"size:16;not null"`
	Source       string   `gorm:"size:16;not null"`
	AICategory   *string  `gorm:"column:ai_category;size:100"`
	AIConfidence *float64 `gorm:"column:ai_confidence;type:numeric(5,4)"`
}

type BudgetRule struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID        string    `gorm:"not null;index"`
	LimitAmount   float64   `gorm:"type:numeric(12,2);not null"`
	Period        string    `gorm:"size:16;not null"`
	NextResetDate time.Time `gorm:"not null"`
}

type Conversation struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID   string  `gorm:"not null;index"`
	ThreadID string  `gorm:"uniqueIndex;not null"`
	Title    *string `gorm:"size:200"`
}

type ChatMessage struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ConversationID   string   `gorm:"not null;index"`
	ParentMessageID  *string  `gorm:"index"`
	Role             string   `gorm:"size:16;not null;index"`
	Content          string   `gorm:"type:text;not null"`
	Model            *string  `gorm:"size:100"`
	Temperature      *float64 `gorm:"type:numeric(5,2)"`
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int    `gorm:"index"`
	Status           string  `gorm:"size:16;not null;default:completed;index"`
	FinishReason     *string `gorm:"size:32"`
	LatencyMs        *int
	Metadata         *string `gorm:"type:text"`
}

type BlacklistedToken struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Token     string    `gorm:"size:500;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}
