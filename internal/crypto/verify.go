package crypto

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/veloralabs/liqlock/internal/domain"
)

// personalPrefix is the EIP-191 personal-message prefix.
const personalPrefix = "\x19Ethereum Signed Message:\n"

// RecoverSigner recovers the address that produced an EIP-191 personal
// signature over message. Signatures are the standard 65-byte r||s||v form,
// hex encoded with or without 0x prefix; v may be 0/1 or 27/28.
func RecoverSigner(message []byte, signatureHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signatureHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: signature is not valid hex: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("crypto: signature must be 65 bytes, got %d", len(sig))
	}

	// Normalise the recovery id.
	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, fmt.Errorf("crypto: invalid recovery id %d", sig[64])
	}
	normalized := make([]byte, 65)
	copy(normalized, sig[:64])
	normalized[64] = v

	digest := personalDigest(message)
	pub, err := ethcrypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: recover public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// VerifyCaller checks that signatureHex over message was produced by the
// expected caller.
func VerifyCaller(caller common.Address, message []byte, signatureHex string) error {
	recovered, err := RecoverSigner(message, signatureHex)
	if err != nil {
		return err
	}
	if recovered != caller {
		return fmt.Errorf("crypto: signature from %s, expected %s: %w",
			recovered, caller, domain.ErrNotAuthorized)
	}
	return nil
}

// personalDigest applies the EIP-191 prefix and keccak256.
func personalDigest(message []byte) []byte {
	prefixed := fmt.Sprintf("%s%d%s", personalPrefix, len(message), message)
	return ethcrypto.Keccak256([]byte(prefixed))
}

// ---------------------------------------------------------------------------
// Canonical operation messages. The API signs human-readable strings so that
// wallets display something auditable; both sides must build them
// byte-identically.
// ---------------------------------------------------------------------------

// WithdrawMessage is the canonical message a claim holder signs to authorize
// a withdrawal.
func WithdrawMessage(claim domain.ClaimID, recipient common.Address, amount, minA, minB *big.Int, deadline uint64) []byte {
	return []byte(fmt.Sprintf("liqlock:withdraw:%d:%s:%s:%s:%s:%d",
		claim, strings.ToLower(recipient.Hex()), amount, minA, minB, deadline))
}

// CollectMessage is the canonical message for a yield sweep.
func CollectMessage(claim domain.ClaimID, recipient common.Address, minA, minB *big.Int) []byte {
	return []byte(fmt.Sprintf("liqlock:collect:%d:%s:%s:%s",
		claim, strings.ToLower(recipient.Hex()), minA, minB))
}

// ReleaseMessage is the canonical message for returning the underlying
// position.
func ReleaseMessage(claim domain.ClaimID) []byte {
	return []byte(fmt.Sprintf("liqlock:release:%d", claim))
}
