package ledger

// SeedBalance sets a wallet balance directly on the in-memory ledger without
// recording a history entry. Test helper only.
func SeedBalance(l Ledger, name string, amount int64) {
	ml := l.(*memoryLedger)
	acc, err := ml.account(name)
	if err != nil {
		panic("seed unknown wallet: " + name)
	}
	acc.mu.Lock()
	acc.balance = amount
	acc.mu.Unlock()
}
