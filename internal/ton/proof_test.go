package ton

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ft-lockup/backend/internal/models"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
)

const testDomain = "lockup.example.com"

// signer is a V4R2 wallet whose address is derived from its state init.
type signer struct {
	pub       ed25519.PublicKey
	priv      ed25519.PrivateKey
	account   *address.Address
	stateInit string
}

func newSigner(t *testing.T) *signer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	st, err := wallet.GetStateInit(pub, wallet.V4R2, wallet.DefaultSubwallet)
	if err != nil {
		t.Fatal(err)
	}
	c, err := tlb.ToCell(st)
	if err != nil {
		t.Fatal(err)
	}
	return &signer{
		pub:       pub,
		priv:      priv,
		account:   address.NewAddress(0, 0, c.Hash()),
		stateInit: base64.StdEncoding.EncodeToString(c.ToBOC()),
	}
}

func (s *signer) sign(ts time.Time, domain, payload string) Proof {
	return s.signAs(s.account, ts, domain, payload)
}

// signAs signs a proof for any address with the signer's key.
func (s *signer) signAs(account *address.Address, ts time.Time, domain, payload string) Proof {
	p := Proof{
		Timestamp: ts.Unix(),
		Domain:    ProofDomain{LengthBytes: len(domain), Value: domain},
		Payload:   payload,
	}
	digest := proofDigest(account, p)
	p.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(s.priv, digest[:]))
	return p
}

type staticKeys map[string]ed25519.PublicKey

func (k staticKeys) WalletPublicKey(_ context.Context, account *address.Address) (ed25519.PublicKey, error) {
	key, ok := k[account.StringRaw()]
	if !ok {
		return nil, errors.New("account is not deployed")
	}
	return key, nil
}

func TestProofVerifier(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := newSigner(t)
	other := newSigner(t)
	v := NewProofVerifier([]string{testDomain}, nil).WithClock(func() time.Time { return now })

	hexSigned := s.sign(now, testDomain, "nonce")
	raw, _ := base64.StdEncoding.DecodeString(hexSigned.Signature)
	hexSigned.Signature = hex.EncodeToString(raw)

	tampered := s.sign(now, testDomain, "nonce")
	tampered.Payload = "other-nonce"

	// other signs a proof for s's address with its own valid key
	forged := other.signAs(s.account, now, testDomain, "nonce")

	tests := []struct {
		name      string
		account   *address.Address
		pubKey    string
		stateInit string
		proof     Proof
		ok        bool
	}{
		{"valid", s.account, hex.EncodeToString(s.pub), s.stateInit, s.sign(now, testDomain, "nonce"), true},
		{"hex signature", s.account, hex.EncodeToString(s.pub), s.stateInit, hexSigned, true},
		{"expired", s.account, hex.EncodeToString(s.pub), s.stateInit, s.sign(now.Add(-10*time.Minute), testDomain, "nonce"), false},
		{"from the future", s.account, hex.EncodeToString(s.pub), s.stateInit, s.sign(now.Add(5*time.Minute), testDomain, "nonce"), false},
		{"foreign domain", s.account, hex.EncodeToString(s.pub), s.stateInit, s.sign(now, "evil.example.com", "nonce"), false},
		{"tampered payload", s.account, hex.EncodeToString(s.pub), s.stateInit, tampered, false},
		{"other address", other.account, hex.EncodeToString(s.pub), s.stateInit, s.sign(now, testDomain, "nonce"), false},
		{"wrong key", s.account, hex.EncodeToString(other.pub), s.stateInit, s.sign(now, testDomain, "nonce"), false},
		{"unrelated key with the victim's state init", s.account, hex.EncodeToString(other.pub), s.stateInit, forged, false},
		{"unrelated key with its own state init", s.account, hex.EncodeToString(other.pub), other.stateInit, forged, false},
		{"unrelated key without state init", s.account, hex.EncodeToString(other.pub), "", forged, false},
		{"malformed state init", s.account, hex.EncodeToString(s.pub), "!!", s.sign(now, testDomain, "nonce"), false},
		{"malformed key", s.account, "zz", s.stateInit, s.sign(now, testDomain, "nonce"), false},
		{"small order key", s.account, strings.Repeat("00", 32), s.stateInit, s.sign(now, testDomain, "nonce"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Verify(ctx, tc.account, tc.pubKey, tc.stateInit, tc.proof)
			if tc.ok && err != nil {
				t.Fatalf("expected valid proof, got %v", err)
			}
			if !tc.ok && !errors.Is(err, models.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestProofVerifier_DeployedWalletKey(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := newSigner(t)
	other := newSigner(t)
	keys := staticKeys{s.account.StringRaw(): s.pub}
	v := NewProofVerifier(nil, keys).WithClock(func() time.Time { return now })

	if err := v.Verify(ctx, s.account, hex.EncodeToString(s.pub), "", s.sign(now, testDomain, "n")); err != nil {
		t.Fatalf("expected the on-chain key to be accepted: %v", err)
	}

	forged := other.signAs(s.account, now, testDomain, "n")
	if err := v.Verify(ctx, s.account, hex.EncodeToString(other.pub), "", forged); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expected a key that differs from the wallet's to be rejected, got %v", err)
	}

	if err := v.Verify(ctx, other.account, hex.EncodeToString(other.pub), "", other.sign(now, testDomain, "n")); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expected an undeployed wallet without state init to be rejected, got %v", err)
	}
}

func TestProofVerifier_AnyDomainWhenUnrestricted(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := newSigner(t)
	v := NewProofVerifier(nil, nil).WithClock(func() time.Time { return now })

	err := v.Verify(context.Background(), s.account, hex.EncodeToString(s.pub), s.stateInit, s.sign(now, "localhost:5173", "n"))
	if err != nil {
		t.Fatalf("empty allow list must accept any domain: %v", err)
	}
}
