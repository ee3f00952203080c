package models

// Ad рекламный блок для плейсмента. Code отдаётся клиенту как есть.
type Ad struct {
	ID        int64  `json:"id"`
	Placement string `json:"placement"`
	Code      string `json:"code"`
	Active    bool   `json:"active"`
}

type CreateAdInput struct {
	Placement string
	Code      string
	Active    *bool
}
