package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sony/sonyflake"
)

// IDGenerator hands out unique transaction ids that sort in generation order
type IDGenerator interface {
	NextID() (string, error)
}

// SonyflakeIDs generates ids with Sonyflake, zero padded so string order matches generation order
type SonyflakeIDs struct {
	sf *sonyflake.Sonyflake
}

// NewSonyflakeIDs creates a generator for the given machine id
func NewSonyflakeIDs(machineID uint16) (*SonyflakeIDs, error) {
	sf, err := sonyflake.New(sonyflake.Settings{
		StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		MachineID: func() (uint16, error) {
			return machineID, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sonyflake instance: %w", err)
	}
	return &SonyflakeIDs{sf: sf}, nil
}

// NextID implements IDGenerator
func (g *SonyflakeIDs) NextID() (string, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return fmt.Sprintf("tx_%020d", id), nil
}

// SequenceIDs is a deterministic generator: tx_000001, tx_000002, ...
type SequenceIDs struct {
	mu   sync.Mutex
	next int
}

// NextID implements IDGenerator
func (g *SequenceIDs) NextID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("tx_%06d", g.next), nil
}

// SettlementSource produces the pseudo-random values attached to simulated settlements
type SettlementSource interface {
	TxHash() string
	BlockNumber() uint64
	Invoice() string
	Preimage() string
}

// RandomSettlement draws settlement values from crypto/rand.
// Hashes are Keccak-256 digests so they look like Starknet transaction hashes.
type RandomSettlement struct{}

// TxHash implements SettlementSource
func (RandomSettlement) TxHash() string {
	return crypto.Keccak256Hash(randomBytes(32)).Hex()
}

// BlockNumber implements SettlementSource
func (RandomSettlement) BlockNumber() uint64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return 0
	}
	return n.Uint64()
}

// Invoice implements SettlementSource
func (RandomSettlement) Invoice() string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	buf := randomBytes(20)
	out := make([]byte, len(buf))
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return "lnbc" + string(out)
}

// Preimage implements SettlementSource
func (RandomSettlement) Preimage() string {
	return hex.EncodeToString(randomBytes(32))
}

func randomBytes(n int) []byte {
	buf := make([]byte, n)
	// crypto/rand.Read never returns an error on supported platforms
	_, _ = rand.Read(buf)
	return buf
}
