package model

// TakeProfit is one partial-exit level of a symbol. Its identity across requests is
// the (Target, Quantity) pair, see TPKey.
type TakeProfit struct {
	ID       uint    `gorm:"primaryKey" json:"-"`
	Symbol   string  `gorm:"size:32;not null;index" json:"symbol"`
	Enabled  bool    `gorm:"not null" json:"enabled"`
	Quantity int64   `gorm:"not null" json:"quantity"`
	Target   float64 `gorm:"not null" json:"target"`
	Price    float64 `gorm:"not null" json:"price"`
	Hit      bool    `gorm:"not null" json:"hit"`
}

func (TakeProfit) TableName() string {
	return "take_profits"
}

// TPKey identifies a take-profit level within a symbol. Target is compared with
// exact float64 equality: 1.5 and 1.5000001 are different levels.
type TPKey struct {
	Target   float64
	Quantity int64
}

func (tp TakeProfit) Key() TPKey {
	return TPKey{Target: tp.Target, Quantity: tp.Quantity}
}

// TPLevel is a fully specified desired take-profit level.
type TPLevel struct {
	Enabled  bool
	Quantity int64
	Target   float64
	Price    float64
	Hit      bool
}

func (l TPLevel) Key() TPKey {
	return TPKey{Target: l.Target, Quantity: l.Quantity}
}

// TPDict is the wire representation of a take-profit level.
type TPDict struct {
	Enabled  bool    `json:"enabled"`
	Quantity int64   `json:"quantity"`
	Target   float64 `json:"target"`
	Price    float64 `json:"price"`
	Hit      bool    `json:"hit"`
}

func (tp TakeProfit) ToDict() TPDict {
	return TPDict{
		Enabled:  tp.Enabled,
		Quantity: tp.Quantity,
		Target:   tp.Target,
		Price:    tp.Price,
		Hit:      tp.Hit,
	}
}
