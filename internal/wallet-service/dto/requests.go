package dto

// CreateWalletRequest é enviado pelo fluxo de cadastro
type CreateWalletRequest struct {
	UserID string `json:"userId"`
}
