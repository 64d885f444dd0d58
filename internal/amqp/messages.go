package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"budget/internal/core"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// TransactionRecordedMessage carries a committed transaction to the export
// workers. Amount travels as a decimal string.
type TransactionRecordedMessage struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	SourceType  string    `json:"source_type,omitempty"`
	SourceID    string    `json:"source_id,omitempty"`
	SourceMonth string    `json:"source_month,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(t core.Transaction) *TransactionRecordedMessage {
	msg := &TransactionRecordedMessage{
		ID:          t.ID,
		Date:        t.Date.Format(dateLayout),
		Description: t.Description,
		Amount:      core.FormatAmount(t.Amount),
		Timestamp:   time.Now(),
	}
	if key, ok := t.RecurringKey(); ok {
		msg.SourceType = string(key.SourceType)
		msg.SourceID = key.SourceID
		msg.SourceMonth = string(*t.SourceMonth)
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("message has no transaction id")
	}
	return &msg, nil
}

// Transaction rebuilds the transaction carried by the message.
func (m *TransactionRecordedMessage) Transaction() (core.Transaction, error) {
	date, err := time.Parse(dateLayout, m.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", m.Date, err)
	}
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", m.Amount, err)
	}

	t := core.Transaction{
		ID:          m.ID,
		Date:        date,
		Description: m.Description,
		Amount:      amount,
	}
	if m.SourceType != "" {
		st := core.SourceType(m.SourceType)
		if !st.Valid() {
			return core.Transaction{}, fmt.Errorf("unknown source type %q", m.SourceType)
		}
		month, err := core.ParseMonthKey(m.SourceMonth)
		if err != nil {
			return core.Transaction{}, err
		}
		id := m.SourceID
		t.SourceType, t.SourceID, t.SourceMonth = &st, &id, &month
	}
	return t, nil
}
