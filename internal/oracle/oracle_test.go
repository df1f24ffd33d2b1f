package oracle

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/nftlend-api/internal/types"
)

func testTerms(now time.Time) LoanTerms {
	return LoanTerms{
		ChainID:       1,
		Collection:    common.HexToAddress("0x9a38dec0590abc8c883d72e52391090e948ddf12"),
		TokenID:       big.NewInt(714),
		Price:         big.NewInt(10_000_000_000),
		FloorPrice:    big.NewInt(9_500_000_000),
		PriceWithFees: big.NewInt(10_250_000_000),
		Borrower:      common.HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8"),
		Nonce:         0,
		Timestamp:     now,
		ExtraData:     []byte{0xde, 0xad, 0xbe, 0xef},
	}
}

func TestVerifyAcceptsTrustedSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	terms := testTerms(now)

	sig, err := crypto.Sign(terms.Digest(), key)
	require.NoError(t, err)

	v := NewVerifier(crypto.PubkeyToAddress(key.PublicKey))
	v.SetNowFunc(func() time.Time { return now.Add(30 * time.Second) })

	assert.NoError(t, v.Verify(terms, sig))

	// The 27/28 recovery id form must verify too.
	ethSig := make([]byte, len(sig))
	copy(ethSig, sig)
	ethSig[64] += 27
	assert.NoError(t, v.Verify(terms, ethSig))
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	trusted, err := crypto.GenerateKey()
	require.NoError(t, err)
	impostor, err := crypto.GenerateKey()
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	terms := testTerms(now)

	sig, err := crypto.Sign(terms.Digest(), impostor)
	require.NoError(t, err)

	v := NewVerifier(crypto.PubkeyToAddress(trusted.PublicKey))
	v.SetNowFunc(func() time.Time { return now })

	assert.ErrorIs(t, v.Verify(terms, sig), types.ErrOracleSignature)
}

func TestVerifyRejectsTamperedField(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	terms := testTerms(now)

	sig, err := crypto.Sign(terms.Digest(), key)
	require.NoError(t, err)

	v := NewVerifier(crypto.PubkeyToAddress(key.PublicKey))
	v.SetNowFunc(func() time.Time { return now })

	tampered := terms
	tampered.Price = new(big.Int).Add(terms.Price, big.NewInt(1))
	assert.ErrorIs(t, v.Verify(tampered, sig), types.ErrOracleSignature)

	tampered = terms
	tampered.Timestamp = terms.Timestamp.Add(time.Second)
	assert.ErrorIs(t, v.Verify(tampered, sig), types.ErrOracleSignature)
}

func TestVerifyRejectsExpiredTimestamp(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	terms := testTerms(now)

	sig, err := crypto.Sign(terms.Digest(), key)
	require.NoError(t, err)

	v := NewVerifier(crypto.PubkeyToAddress(key.PublicKey))
	v.SetNowFunc(func() time.Time { return now.Add(SignatureMaxAge + time.Second) })

	assert.ErrorIs(t, v.Verify(terms, sig), types.ErrOracleExpired)
}

func TestPackIsOrderSensitive(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := testTerms(now)
	b := testTerms(now)
	b.Nonce = 1

	assert.NotEqual(t, a.Pack(), b.Pack())
	assert.Equal(t, a.Pack(), testTerms(now).Pack())
	// 7 uint256 words + 2 addresses + extra data
	assert.Len(t, a.Pack(), 7*32+2*20+len(a.ExtraData))
}
