package model

// Response is the envelope returned by every mutating endpoint and by failures.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ActiveStateResponse struct {
	Success      bool                 `json:"success"`
	ActiveOrders map[string]OrderDict `json:"active_orders"`
	TPLevels     map[string][]TPDict  `json:"tp_levels"`
}

type TPLevelsResponse struct {
	Success  bool     `json:"success"`
	Symbol   string   `json:"symbol"`
	TPLevels []TPDict `json:"tp_levels"`
}

// PriceUpdate is the event relayed by the push channel.
type PriceUpdate struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}
