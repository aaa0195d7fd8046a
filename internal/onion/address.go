package onion

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// AddressWidth is the number of decimal digits of every next-hop address.
const AddressWidth = 10

var maxAddress = func() int {
	m := 1
	for i := 0; i < AddressWidth; i++ {
		m *= 10
	}
	return m - 1
}()

// EncodeAddress left-pads value with zeros to AddressWidth digits.
// Values that do not fit are rejected, never truncated.
func EncodeAddress(value int) (string, error) {
	if value < 0 || value > maxAddress {
		return "", errors.Wrapf(ErrFraming, "onion.EncodeAddress(): %d does not fit in %d digits", value, AddressWidth)
	}
	return fmt.Sprintf("%0*d", AddressWidth, value), nil
}

// DecodeAddress parses an address produced by EncodeAddress.
func DecodeAddress(address string) (int, error) {
	if !isAddress(address) {
		return 0, errors.Wrapf(ErrFraming, "onion.DecodeAddress(): %q is not %d decimal digits", address, AddressWidth)
	}
	value, err := strconv.Atoi(address)
	if err != nil {
		return 0, errors.Wrapf(ErrFraming, "onion.DecodeAddress(): %v", err)
	}
	return value, nil
}

func isAddress(address string) bool {
	if len(address) != AddressWidth {
		return false
	}
	for i := 0; i < len(address); i++ {
		if address[i] < '0' || address[i] > '9' {
			return false
		}
	}
	return true
}
