package domain

// ErrorResponse é a estrutura padronizada para respostas de erro na API.
// ProductID e Shortage só são preenchidos para INSUFFICIENT_STOCK.
type ErrorResponse struct {
	Code      int    `json:"code" example:"422"`
	Category  string `json:"category" example:"INSUFFICIENT_STOCK"`
	Message   string `json:"message" example:"Estoque insuficiente: produto p1, pedido 10, faltam 2"`
	ProductID string `json:"product_id,omitempty"`
	Shortage  string `json:"shortage,omitempty"`
}
