package idempotency

import (
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint hashes the semantic fields of a request so token reuse across
// different payloads is detectable. Fields are joined with an unlikely
// separator before hashing to keep ("ab","c") distinct from ("a","bc").
func Fingerprint(kind Kind, fields ...string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(kind))
	for _, f := range fields {
		h.Write([]byte{0x1f})
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CreateFingerprint summarizes a create-wallet request.
func CreateFingerprint(name string) string {
	return Fingerprint(KindCreate, name)
}

// DepositFingerprint summarizes a deposit request.
func DepositFingerprint(wallet string, amount int64) string {
	return Fingerprint(KindDeposit, wallet, strconv.FormatInt(amount, 10))
}

// TransferFingerprint summarizes a transfer request.
func TransferFingerprint(from, to string, amount int64) string {
	return Fingerprint(KindTransfer, from, to, strconv.FormatInt(amount, 10))
}
