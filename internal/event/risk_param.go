package event

// ParamUpdate records a governance parameter change on any component
type ParamUpdate struct {
	Component string `json:"component"` // ledger, amm or tokenizer
	Name      string `json:"name"`
	Value     string `json:"value"` // WAD integer string
	Caller    string `json:"caller"`
}

func (p *ParamUpdate) EventType() EventType {
	return EventTypeParamUpdate
}

// StatusChange records a lifecycle transition of the margin ledger
type StatusChange struct {
	From            string `json:"from"`
	To              string `json:"to"`
	SettlementPrice string `json:"settlement_price,omitempty"`
}

func (s *StatusChange) EventType() EventType {
	return EventTypeStatusChange
}
