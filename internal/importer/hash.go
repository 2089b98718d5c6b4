package importer

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// ImportHash fingerprints a row for duplicate detection. A nil balance hashes
// differently from any present balance.
func ImportHash(date, payee string, amount int64, balance *int64) string {
	h := sha256.New()
	h.Write([]byte(date))
	h.Write([]byte(payee))
	h.Write(binary.LittleEndian.AppendUint64(nil, uint64(amount)))
	if balance != nil {
		h.Write(binary.LittleEndian.AppendUint64(nil, uint64(*balance)))
	}
	return hex.EncodeToString(h.Sum(nil))
}
