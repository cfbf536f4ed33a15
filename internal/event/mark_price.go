package event

// MarkPriceUpdate records a fresh index observation and the resulting mark
// price (index plus the clamped EMA premium)
type MarkPriceUpdate struct {
	IndexPrice     string `json:"index_price"` // WAD integer string
	MarkPrice      string `json:"mark_price"`
	IndexTimestamp int64  `json:"index_timestamp"` // unix seconds
}

func (m *MarkPriceUpdate) EventType() EventType {
	return EventTypeMarkPriceUpdate
}
