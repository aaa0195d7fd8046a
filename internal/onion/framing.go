package onion

import (
	"crypto/rsa"

	"github.com/HannahMarsh/simple-onion-routing/internal/onion/keys"
	"github.com/pkg/errors"
)

// KeySegmentWidth is the width of the encrypted layer key at the front of every envelope.
const KeySegmentWidth = keys.AsymmetricCiphertextWidth

// Layer is what a relay learns by peeling one envelope.
type Layer struct {
	NextHopAddress string // AddressWidth decimal digits
	InnerPayload   string // another envelope, or the final plaintext message
}

// BuildLayer wraps innerPayload in one layer of encryption readable only by the holder
// of the private key matching publicKey.
// Parameters:
// - nextHopAddress: where the peeling relay must send innerPayload (AddressWidth digits).
// - innerPayload: the next envelope or the final message.
// - publicKey: the public key of the relay that will peel this layer.
// Returns:
// - encryptedKeySegment || encryptedBodySegment.
// - An error object if an error occurred, otherwise nil.
func BuildLayer(nextHopAddress, innerPayload string, publicKey *rsa.PublicKey) (string, error) {
	if !isAddress(nextHopAddress) {
		return "", errors.Wrapf(ErrFraming, "onion.BuildLayer(): next hop %q is not %d decimal digits", nextHopAddress, AddressWidth)
	}

	// one key per layer, never reused
	layerKey, err := keys.GenerateSymmetricKey()
	if err != nil {
		return "", errors.Wrap(err, "onion.BuildLayer(): failed to generate layer key")
	}

	body, err := keys.SymmetricEncrypt(layerKey, nextHopAddress+innerPayload)
	if err != nil {
		return "", errors.Wrap(err, "onion.BuildLayer(): failed to encrypt body")
	}

	keySegment, err := keys.AsymmetricEncrypt([]byte(keys.EncodeSymmetricKey(layerKey)), publicKey)
	if err != nil {
		return "", errors.Wrap(err, "onion.BuildLayer(): failed to encrypt layer key")
	}
	if len(keySegment) != KeySegmentWidth {
		return "", errors.Wrapf(ErrFraming, "onion.BuildLayer(): key segment is %d characters, expected %d", len(keySegment), KeySegmentWidth)
	}

	return keySegment + body, nil
}

// PeelLayer removes exactly one layer from envelope using privateKey.
// Returns ErrFraming if the envelope or the decrypted body is too short for its fixed-width
// prefix, and ErrDecryption if either segment fails to decrypt.
func PeelLayer(envelope string, privateKey *rsa.PrivateKey) (Layer, error) {
	if len(envelope) < KeySegmentWidth {
		return Layer{}, errors.Wrapf(ErrFraming, "onion.PeelLayer(): envelope is %d characters, key segment needs %d", len(envelope), KeySegmentWidth)
	}
	keySegment, bodySegment := envelope[:KeySegmentWidth], envelope[KeySegmentWidth:]

	encodedKey, err := keys.AsymmetricDecrypt(keySegment, privateKey)
	if err != nil {
		return Layer{}, errors.Wrap(err, "onion.PeelLayer(): failed to decrypt key segment")
	}
	layerKey, err := keys.DecodeSymmetricKey(string(encodedKey))
	if err != nil {
		return Layer{}, errors.Wrap(err, "onion.PeelLayer(): failed to decode layer key")
	}

	body, err := keys.SymmetricDecrypt(layerKey, bodySegment)
	if err != nil {
		return Layer{}, errors.Wrap(err, "onion.PeelLayer(): failed to decrypt body")
	}

	if len(body) < AddressWidth {
		return Layer{}, errors.Wrapf(ErrFraming, "onion.PeelLayer(): body is %d characters, address needs %d", len(body), AddressWidth)
	}
	if !isAddress(body[:AddressWidth]) {
		return Layer{}, errors.Wrap(ErrFraming, "onion.PeelLayer(): next hop address is not decimal")
	}

	return Layer{
		NextHopAddress: body[:AddressWidth],
		InnerPayload:   body[AddressWidth:],
	}, nil
}
