package oracle

import (
	"bytes"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ksred/nftlend-api/internal/types"
)

// SignatureMaxAge is how long a signed loan quote stays valid. Quotes are
// priced off-chain, so a stale one could reference a price that no longer
// exists on the marketplace.
const SignatureMaxAge = 5 * time.Minute

// LoanTerms is the exact tuple the trusted signer commits to. The packed
// encoding is order-sensitive: any field change invalidates the signature.
type LoanTerms struct {
	ChainID       uint64
	Collection    common.Address
	TokenID       *big.Int
	Price         *big.Int
	FloorPrice    *big.Int
	PriceWithFees *big.Int
	Borrower      common.Address
	Nonce         uint64
	Timestamp     time.Time
	ExtraData     []byte
}

// Pack produces the tight solidity-style encoding of the terms:
// uint256 fields as 32 big-endian bytes, addresses as 20 bytes, extra data raw.
func (t LoanTerms) Pack() []byte {
	var buf bytes.Buffer
	buf.Write(uint256Bytes(new(big.Int).SetUint64(t.ChainID)))
	buf.Write(t.Collection.Bytes())
	buf.Write(uint256Bytes(t.TokenID))
	buf.Write(uint256Bytes(t.Price))
	buf.Write(uint256Bytes(t.FloorPrice))
	buf.Write(uint256Bytes(t.PriceWithFees))
	buf.Write(t.Borrower.Bytes())
	buf.Write(uint256Bytes(new(big.Int).SetUint64(t.Nonce)))
	buf.Write(uint256Bytes(big.NewInt(t.Timestamp.Unix())))
	buf.Write(t.ExtraData)
	return buf.Bytes()
}

// Digest is the prefixed hash the signer actually signs: the keccak of the
// packed terms wrapped in the standard Ethereum signed-message envelope.
func (t LoanTerms) Digest() []byte {
	inner := crypto.Keccak256(t.Pack())
	return crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n32"), inner)
}

func uint256Bytes(v *big.Int) []byte {
	out := make([]byte, 32)
	if v != nil {
		v.FillBytes(out)
	}
	return out
}

// Verifier checks loan-term signatures against a single trusted signer.
type Verifier struct {
	signer  common.Address
	maxAge  time.Duration
	nowFunc func() time.Time
}

func NewVerifier(signer common.Address) *Verifier {
	return &Verifier{
		signer:  signer,
		maxAge:  SignatureMaxAge,
		nowFunc: time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (v *Verifier) SetNowFunc(now func() time.Time) { v.nowFunc = now }

// Signer returns the trusted signer address.
func (v *Verifier) Signer() common.Address { return v.signer }

// Verify recovers the signer from the 65-byte signature and checks it against
// the trusted address. The signed timestamp must be recent and not in the
// future beyond clock skew.
func (v *Verifier) Verify(terms LoanTerms, signature []byte) error {
	now := v.nowFunc()
	if terms.Timestamp.After(now.Add(time.Minute)) {
		return types.ErrOracleExpired
	}
	if now.Sub(terms.Timestamp) > v.maxAge {
		return types.ErrOracleExpired
	}

	if len(signature) != crypto.SignatureLength {
		return fmt.Errorf("%w: signature length %d", types.ErrOracleSignature, len(signature))
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	// Accept both the raw {0,1} and the Ethereum {27,28} recovery id forms.
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(terms.Digest(), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrOracleSignature, err)
	}
	if crypto.PubkeyToAddress(*pub) != v.signer {
		return types.ErrOracleSignature
	}
	return nil
}
