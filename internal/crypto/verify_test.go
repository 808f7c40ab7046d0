package crypto

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloralabs/liqlock/internal/domain"
)

func signPersonal(t *testing.T, message []byte) (common.Address, string) {
	t.Helper()

	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	sig, err := ethcrypto.Sign(personalDigest(message), key)
	require.NoError(t, err)

	return ethcrypto.PubkeyToAddress(key.PublicKey), hex.EncodeToString(sig)
}

func TestRecoverSigner(t *testing.T) {
	msg := WithdrawMessage(7, common.HexToAddress("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"),
		big.NewInt(500_000), big.NewInt(1), big.NewInt(1), 1_700_000_000)

	addr, sigHex := signPersonal(t, msg)

	recovered, err := RecoverSigner(msg, sigHex)
	require.NoError(t, err)
	assert.Equal(t, addr, recovered)

	// 0x prefix and v in 27/28 form are accepted too.
	sig, _ := hex.DecodeString(sigHex)
	sig[64] += 27
	recovered, err = RecoverSigner(msg, "0x"+hex.EncodeToString(sig))
	require.NoError(t, err)
	assert.Equal(t, addr, recovered)
}

func TestVerifyCaller(t *testing.T) {
	msg := ReleaseMessage(3)
	addr, sigHex := signPersonal(t, msg)

	require.NoError(t, VerifyCaller(addr, msg, sigHex))

	other := common.HexToAddress("0x00000000000000000000000000000000000000ee")
	require.ErrorIs(t, VerifyCaller(other, msg, sigHex), domain.ErrNotAuthorized)

	// A signature over a different message recovers a different key.
	err := VerifyCaller(addr, CollectMessage(3, other, big.NewInt(0), big.NewInt(0)), sigHex)
	require.Error(t, err)
}

func TestRecoverSignerRejectsMalformed(t *testing.T) {
	msg := ReleaseMessage(1)

	_, err := RecoverSigner(msg, "zz")
	require.Error(t, err)

	_, err = RecoverSigner(msg, hex.EncodeToString(make([]byte, 64)))
	require.Error(t, err)
}
