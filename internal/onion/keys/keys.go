package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// AsymmetricKeyBits is the RSA modulus size every party generates.
	AsymmetricKeyBits = 2048
	// SymmetricKeySize is the size of a one-time layer key in bytes.
	SymmetricKeySize = chacha20poly1305.KeySize
	// AsymmetricCiphertextWidth is the length of base64(RSA-OAEP ciphertext) for a
	// 2048-bit key: 256 bytes -> 344 characters.
	AsymmetricCiphertextWidth = 344
)

// ErrDecryption is returned whenever a ciphertext cannot be opened: wrong key,
// wrong width, bad encoding or a failed authentication tag.
var ErrDecryption = errors.New("decryption failed")

// SymmetricKey is a one-time key used to seal a single onion layer body.
type SymmetricKey []byte

// GenerateAsymmetricKeyPair generates an RSA key pair of AsymmetricKeyBits.
// Returns:
// - privateKey: the generated private key; its PublicKey field holds the public half.
// - err: an error object if an error occurred, otherwise nil.
func GenerateAsymmetricKeyPair() (privateKey *rsa.PrivateKey, err error) {
	if privateKey, err = rsa.GenerateKey(rand.Reader, AsymmetricKeyBits); err != nil {
		return nil, errors.Wrap(err, "keys.GenerateAsymmetricKeyPair(): failed to generate RSA key")
	}
	return privateKey, nil
}

// GenerateSymmetricKey generates a random key for layer encryption.
// Returns:
// - A SymmetricKey of SymmetricKeySize bytes.
// - An error object if an error occurred, otherwise nil.
func GenerateSymmetricKey() (SymmetricKey, error) {
	key := make(SymmetricKey, SymmetricKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, errors.Wrap(err, "keys.GenerateSymmetricKey(): failed to read random bytes")
	}
	return key, nil
}

// EncodePublicKey returns the base64 encoding of the key's PKIX (SPKI) DER form.
func EncodePublicKey(publicKey *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", errors.Wrap(err, "keys.EncodePublicKey(): failed to marshal public key")
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// DecodePublicKey parses a key produced by EncodePublicKey.
func DecodePublicKey(encoded string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "keys.DecodePublicKey(): invalid base64")
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, errors.Wrap(err, "keys.DecodePublicKey(): invalid PKIX key")
	}
	if publicKey, ok := parsed.(*rsa.PublicKey); !ok {
		return nil, errors.New("keys.DecodePublicKey(): not an RSA public key")
	} else {
		return publicKey, nil
	}
}

// EncodePrivateKey returns the base64 encoding of the key's PKCS#8 DER form.
func EncodePrivateKey(privateKey *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return "", errors.Wrap(err, "keys.EncodePrivateKey(): failed to marshal private key")
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// DecodePrivateKey parses a key produced by EncodePrivateKey.
func DecodePrivateKey(encoded string) (*rsa.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "keys.DecodePrivateKey(): invalid base64")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, errors.Wrap(err, "keys.DecodePrivateKey(): invalid PKCS#8 key")
	}
	if privateKey, ok := parsed.(*rsa.PrivateKey); !ok {
		return nil, errors.New("keys.DecodePrivateKey(): not an RSA private key")
	} else {
		return privateKey, nil
	}
}

// EncodeSymmetricKey returns the fixed textual form of a layer key (base64 of the raw bytes).
func EncodeSymmetricKey(key SymmetricKey) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeSymmetricKey parses a key produced by EncodeSymmetricKey.
func DecodeSymmetricKey(encoded string) (SymmetricKey, error) {
	key, err := base64.StdEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(ErrDecryption, "keys.DecodeSymmetricKey(): invalid base64")
	}
	if len(key) != SymmetricKeySize {
		return nil, errors.Wrapf(ErrDecryption, "keys.DecodeSymmetricKey(): key is %d bytes, expected %d", len(key), SymmetricKeySize)
	}
	return key, nil
}

// AsymmetricEncrypt encrypts plaintext with RSA-OAEP (SHA-256).
// Parameters:
// - plaintext: the bytes to encrypt, at most 190 bytes for a 2048-bit key.
// - publicKey: the recipient's public key.
// Returns:
// - The base64 ciphertext; exactly AsymmetricCiphertextWidth characters for 2048-bit keys.
// - An error object if an error occurred, otherwise nil.
func AsymmetricEncrypt(plaintext []byte, publicKey *rsa.PublicKey) (string, error) {
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, plaintext, nil)
	if err != nil {
		return "", errors.Wrap(err, "keys.AsymmetricEncrypt(): failed to encrypt")
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// AsymmetricDecrypt reverses AsymmetricEncrypt.
// Parameters:
// - ciphertext: base64 text of exactly the key's ciphertext width.
// - privateKey: the recipient's private key.
// Returns:
// - The plaintext bytes.
// - ErrDecryption (wrapped) if the width, encoding or padding is invalid.
func AsymmetricDecrypt(ciphertext string, privateKey *rsa.PrivateKey) ([]byte, error) {
	if want := base64.StdEncoding.EncodedLen(privateKey.Size()); len(ciphertext) != want {
		return nil, errors.Wrapf(ErrDecryption, "keys.AsymmetricDecrypt(): ciphertext is %d characters, expected %d", len(ciphertext), want)
	}
	raw, err := base64.StdEncoding.Strict().DecodeString(ciphertext)
	if err != nil {
		return nil, errors.Wrap(ErrDecryption, "keys.AsymmetricDecrypt(): invalid base64")
	}
	plaintext, err := rsa.DecryptOAEP(sha256.New(), nil, privateKey, raw, nil)
	if err != nil {
		return nil, errors.Wrap(ErrDecryption, "keys.AsymmetricDecrypt(): OAEP decryption failed")
	}
	return plaintext, nil
}

// SymmetricEncrypt seals plaintext with ChaCha20-Poly1305.
// Returns:
// - base64(nonce || ciphertext || tag).
// - An error object if an error occurred, otherwise nil.
func SymmetricEncrypt(key SymmetricKey, plaintext string) (string, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", errors.Wrap(err, "keys.SymmetricEncrypt(): failed to create cipher")
	}

	sealed := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err = io.ReadFull(rand.Reader, sealed); err != nil {
		return "", errors.Wrap(err, "keys.SymmetricEncrypt(): failed to generate nonce")
	}
	sealed = aead.Seal(sealed, sealed[:aead.NonceSize()], []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// SymmetricDecrypt opens a ciphertext produced by SymmetricEncrypt.
// Any encoding or authentication failure is reported as ErrDecryption.
func SymmetricDecrypt(key SymmetricKey, ciphertext string) (string, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", errors.Wrap(ErrDecryption, "keys.SymmetricDecrypt(): invalid key")
	}

	sealed, err := base64.StdEncoding.Strict().DecodeString(ciphertext)
	if err != nil {
		return "", errors.Wrap(ErrDecryption, "keys.SymmetricDecrypt(): invalid base64")
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return "", errors.Wrap(ErrDecryption, "keys.SymmetricDecrypt(): ciphertext too short")
	}

	nonce, body := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", errors.Wrap(ErrDecryption, "keys.SymmetricDecrypt(): authentication failed")
	}
	return string(plaintext), nil
}
