package model

// Wallet is one per-currency wallet row.
type Wallet struct {
	Currency        string  `json:"currency"`
	Balance         float64 `json:"balance,string"`
	Blocked         float64 `json:"blockedBalance,string"`
	ActiveBalance   float64 `json:"activeBalance,string"`
	RialBalance     float64 `json:"rialBalance"`
	RialBalanceSell float64 `json:"rialBalanceSell"`
	DepositAddress  string  `json:"depositAddress"`
	DepositTag      string  `json:"depositTag"`
}

// Wallets maps currency code to wallet row.
type Wallets map[string]Wallet

// Balance returns the active balance for a currency, 0 when absent.
func (w Wallets) Balance(currency string) float64 {
	return w[currency].ActiveBalance
}
