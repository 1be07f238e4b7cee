package wallet

// Response payloads for the wallet endpoints. The same encoded form is stored
// in the idempotency store, so a replayed request returns byte-identical data.

// WalletResponse is the `{name, balance}` view of a wallet.
type WalletResponse struct {
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

// DepositResponse reports a completed deposit.
type DepositResponse struct {
	WalletName string `json:"wallet_name"`
	Balance    int64  `json:"balance"`
}

// TransferResponse reports a completed transfer.
type TransferResponse struct {
	TransactionID  string `json:"transaction_id"`
	WalletNameFrom string `json:"wallet_name_from"`
	WalletNameTo   string `json:"wallet_name_to"`
	Amount         int64  `json:"amount"`
	BalanceFrom    int64  `json:"balance_from"`
	BalanceTo      int64  `json:"balance_to"`
}
