package amqp

import (
	"encoding/json"
	"time"

	"budgetwatch/internal/core"
)

// BudgetAlertMessage asks the worker to email a budget-exceeded notice.
// It carries everything the email needs so the worker never reads the store.
type BudgetAlertMessage struct {
	UserID      int64     `json:"user_id"`
	Recipient   string    `json:"recipient"`
	Category    string    `json:"category"`
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	SpentCents  int64     `json:"spent_cents"`
	BudgetCents int64     `json:"budget_cents"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewBudgetAlertMessage(alert core.Alert, recipient string) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		UserID:      alert.Key.UserID,
		Recipient:   recipient,
		Category:    alert.Key.Category,
		Year:        alert.Key.Period.Year,
		Month:       alert.Key.Period.Month,
		SpentCents:  alert.Spent.Cents,
		BudgetCents: alert.Budget.Cents,
		Timestamp:   time.Now(),
	}
}

// Alert rebuilds the domain alert the message was created from.
func (m *BudgetAlertMessage) Alert() core.Alert {
	return core.Alert{
		Level: core.AlertDanger,
		Key: core.BudgetKey{
			UserID:   m.UserID,
			Category: m.Category,
			Period:   core.Period{Year: m.Year, Month: m.Month},
		},
		Spent:  core.Money{Cents: m.SpentCents},
		Budget: core.Money{Cents: m.BudgetCents},
	}
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
