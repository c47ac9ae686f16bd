package ton

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"filippo.io/edwards25519"
	"github.com/ft-lockup/backend/internal/models"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const (
	proofItemPrefix  = "ton-proof-item-v2/"
	proofConnectTag  = "ton-connect"
	defaultMaxAge    = 5 * time.Minute
	allowedClockSkew = time.Minute
)

// Proof is the ton_proof item a wallet returns from TON Connect.
type Proof struct {
	Timestamp int64       `json:"timestamp"`
	Domain    ProofDomain `json:"domain"`
	Payload   string      `json:"payload"`   // nonce issued by the backend
	Signature string      `json:"signature"` // base64, hex is accepted too
}

type ProofDomain struct {
	LengthBytes int    `json:"lengthBytes"`
	Value       string `json:"value"`
}

// WalletKeys looks up the public key of a deployed wallet.
type WalletKeys interface {
	WalletPublicKey(ctx context.Context, account *address.Address) (ed25519.PublicKey, error)
}

// ChainWalletKeys reads the key with the wallet's get_public_key get-method.
type ChainWalletKeys struct {
	api ton.APIClientWrapped
}

func NewChainWalletKeys(api ton.APIClientWrapped) *ChainWalletKeys {
	return &ChainWalletKeys{api: api}
}

func (k *ChainWalletKeys) WalletPublicKey(ctx context.Context, account *address.Address) (ed25519.PublicKey, error) {
	block, err := k.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get master block: %w", err)
	}
	res, err := k.api.WaitForBlock(block.SeqNo).RunGetMethod(ctx, block, account, "get_public_key")
	if err != nil {
		return nil, fmt.Errorf("run get_public_key: %w", err)
	}
	n, err := res.Int(0)
	if err != nil {
		return nil, fmt.Errorf("parse get_public_key result: %w", err)
	}
	if n.Sign() < 0 || n.BitLen() > 8*ed25519.PublicKeySize {
		return nil, fmt.Errorf("get_public_key returned %d bits", n.BitLen())
	}
	return n.FillBytes(make([]byte, ed25519.PublicKeySize)), nil
}

// Bit offsets of the public key in the data cell of standard wallets:
// v1/v2 store seqno first, v3/v4 seqno and subwallet, v5 a signature flag,
// seqno and wallet id.
var walletKeyOffsets = []uint{32, 64, 65}

// ProofVerifier checks that a wallet owns the address it logs in with.
type ProofVerifier struct {
	allowedDomains []string
	keys           WalletKeys
	maxAge         time.Duration
	now            func() time.Time
}

// NewProofVerifier accepts proofs for allowedDomains only; an empty list
// accepts any domain (dev mode). keys is used for logins that come without
// a state init and may be nil, in which case such logins are rejected.
func NewProofVerifier(allowedDomains []string, keys WalletKeys) *ProofVerifier {
	return &ProofVerifier{allowedDomains: allowedDomains, keys: keys, maxAge: defaultMaxAge, now: time.Now}
}

func (v *ProofVerifier) WithClock(now func() time.Time) *ProofVerifier {
	v.now = now
	return v
}

// Verify проверяет подпись ton_proof для account публичным ключом (hex).
// Ключ должен принадлежать кошельку: он берётся из state init (base64 BOC),
// чей хеш равен адресу, или из get_public_key развёрнутого кошелька.
// Любая ошибка — models.ErrUnauthorized.
func (v *ProofVerifier) Verify(ctx context.Context, account *address.Address, publicKeyHex, stateInit string, p Proof) error {
	signedAt := time.Unix(p.Timestamp, 0)
	now := v.now()
	if now.Sub(signedAt) > v.maxAge {
		return fmt.Errorf("%w: proof expired %s ago", models.ErrUnauthorized, now.Sub(signedAt).Round(time.Second))
	}
	if signedAt.After(now.Add(allowedClockSkew)) {
		return fmt.Errorf("%w: proof timestamp is in the future", models.ErrUnauthorized)
	}
	if len(v.allowedDomains) > 0 && !slices.Contains(v.allowedDomains, p.Domain.Value) {
		return fmt.Errorf("%w: domain %q is not allowed", models.ErrUnauthorized, p.Domain.Value)
	}

	pubKey, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: malformed public key", models.ErrUnauthorized)
	}
	if isSmallOrder(pubKey) {
		return fmt.Errorf("%w: weak public key", models.ErrUnauthorized)
	}
	sig, err := decodeSignature(p.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}

	walletKeys, err := v.walletKeys(ctx, account, stateInit)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	if !slices.ContainsFunc(walletKeys, func(k []byte) bool { return bytes.Equal(k, pubKey) }) {
		return fmt.Errorf("%w: public key does not control %s", models.ErrUnauthorized, account.StringRaw())
	}

	digest := proofDigest(account, p)
	if !ed25519.Verify(pubKey, digest[:], sig) {
		return fmt.Errorf("%w: invalid proof signature", models.ErrUnauthorized)
	}
	return nil
}

// walletKeys returns the keys that may control account.
func (v *ProofVerifier) walletKeys(ctx context.Context, account *address.Address, stateInit string) ([][]byte, error) {
	if stateInit != "" {
		return stateInitKeys(account, stateInit)
	}
	if v.keys == nil {
		return nil, fmt.Errorf("state_init is required")
	}
	key, err := v.keys.WalletPublicKey(ctx, account)
	if err != nil {
		return nil, err
	}
	return [][]byte{key}, nil
}

// stateInitKeys checks that the state init hashes to account and reads the
// candidate keys from its data cell.
func stateInitKeys(account *address.Address, stateInit string) ([][]byte, error) {
	boc, err := base64.StdEncoding.DecodeString(stateInit)
	if err != nil {
		return nil, fmt.Errorf("malformed state_init: %v", err)
	}
	root, err := cell.FromBOC(boc)
	if err != nil {
		return nil, fmt.Errorf("malformed state_init: %v", err)
	}
	if !bytes.Equal(root.Hash(), account.Data()) {
		return nil, fmt.Errorf("state_init does not match %s", account.StringRaw())
	}

	var st tlb.StateInit
	if err := tlb.LoadFromCell(&st, root.BeginParse()); err != nil {
		return nil, fmt.Errorf("malformed state_init: %v", err)
	}
	if st.Data == nil {
		return nil, fmt.Errorf("state_init has no data")
	}

	var keys [][]byte
	for _, off := range walletKeyOffsets {
		s := st.Data.BeginParse()
		if s.BitsLeft() < off+8*ed25519.PublicKeySize {
			continue
		}
		if _, err := s.LoadSlice(off); err != nil {
			continue
		}
		key, err := s.LoadSlice(8 * ed25519.PublicKeySize)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// isSmallOrder reports keys that are not curve points or lie in the small
// subgroup. ed25519.Verify accepts forged signatures for the latter.
func isSmallOrder(pub []byte) bool {
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return true
	}
	return new(edwards25519.Point).MultByCofactor(p).Equal(edwards25519.NewIdentityPoint()) == 1
}

// proofDigest is what the wallet signs:
//
//	msg    = "ton-proof-item-v2/" | wc (4 LE) | hash (32) | len(domain) (4 LE) | domain | ts (8 LE) | payload
//	digest = sha256(0xffff | "ton-connect" | sha256(msg))
func proofDigest(account *address.Address, p Proof) [32]byte {
	msg := make([]byte, 0, len(proofItemPrefix)+4+32+4+len(p.Domain.Value)+8+len(p.Payload))
	msg = append(msg, proofItemPrefix...)
	msg = binary.LittleEndian.AppendUint32(msg, uint32(account.Workchain()))
	msg = append(msg, account.Data()...)
	msg = binary.LittleEndian.AppendUint32(msg, uint32(p.Domain.LengthBytes))
	msg = append(msg, p.Domain.Value...)
	msg = binary.LittleEndian.AppendUint64(msg, uint64(p.Timestamp))
	msg = append(msg, p.Payload...)
	inner := sha256.Sum256(msg)

	outer := make([]byte, 0, 2+len(proofConnectTag)+len(inner))
	outer = append(outer, 0xff, 0xff)
	outer = append(outer, proofConnectTag...)
	outer = append(outer, inner[:]...)
	return sha256.Sum256(outer)
}

func decodeSignature(s string) ([]byte, error) {
	if sig, err := base64.StdEncoding.DecodeString(s); err == nil && len(sig) == ed25519.SignatureSize {
		return sig, nil
	}
	if sig, err := hex.DecodeString(s); err == nil && len(sig) == ed25519.SignatureSize {
		return sig, nil
	}
	return nil, fmt.Errorf("malformed signature")
}
