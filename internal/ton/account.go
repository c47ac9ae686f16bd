package ton

import (
	"fmt"
	"strings"

	"github.com/ft-lockup/backend/internal/models"
	"github.com/xssnick/tonutils-go/address"
)

// ParseAccount accepts both user-friendly ("EQ...") and raw ("0:abc...")
// address forms.
func ParseAccount(s string) (*address.Address, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ":") {
		a, err := address.ParseRawAddr(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrInvalidAccount, s, err)
		}
		return a, nil
	}
	a, err := address.ParseAddr(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrInvalidAccount, s, err)
	}
	return a, nil
}

// NormalizeAccount returns the canonical id of a TON address: the
// bounceable user-friendly form.
func NormalizeAccount(s string) (string, error) {
	a, err := ParseAccount(s)
	if err != nil {
		return "", err
	}
	return canonical(a), nil
}

// AccountID returns the canonical id of a raw workchain + hash pair.
func AccountID(workchain int32, hash []byte) string {
	return canonical(address.NewAddress(0, byte(workchain), hash))
}

func canonical(a *address.Address) string {
	a.SetBounce(true)
	a.SetTestnetOnly(false)
	return a.String()
}
