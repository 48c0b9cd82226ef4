package pathoram

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/tink-crypto/tink-go/v2/aead"
	"github.com/tink-crypto/tink-go/v2/insecurecleartextkeyset"
	"github.com/tink-crypto/tink-go/v2/keyset"
	"github.com/tink-crypto/tink-go/v2/tink"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
)

// AEAD is an authenticated cipher that draws its own nonce on every Seal.
// Implementations must fail closed: Open never returns partial plaintext.
type AEAD interface {
	// Seal encrypts plaintext. The result carries the nonce and tag.
	Seal(plaintext []byte) ([]byte, error)

	// Open authenticates and decrypts a blob produced by Seal.
	Open(blob []byte) ([]byte, error)

	// Overhead returns the number of extra bytes added by Seal
	// (nonce + authentication tag).
	Overhead() int
}

// KeySize is the session key length for the built-in ciphers.
const KeySize = 32

const gcmNonceSize = 12

// AESGCM provides AES-256-GCM encryption with a fresh random 96-bit nonce
// per Seal. Instances sharing a key draw their nonces independently.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM creates a new AES-GCM cipher with the given 32-byte key.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &AESGCM{aead: gcm}, nil
}

// Seal encrypts plaintext using AES-GCM under a random nonce.
// Output format: nonce (12 bytes) || ciphertext || tag (16 bytes)
func (e *AESGCM) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, gcmNonceSize, gcmNonceSize+len(plaintext)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, ErrEncryptionFailed
	}

	// Seal appends ciphertext+tag to nonce
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal.
func (e *AESGCM) Open(blob []byte) ([]byte, error) {
	if len(blob) < gcmNonceSize+e.aead.Overhead() {
		return nil, ErrDecodeFailure
	}
	plaintext, err := e.aead.Open(nil, blob[:gcmNonceSize], blob[gcmNonceSize:], nil)
	if err != nil {
		return nil, ErrDecodeFailure
	}
	return plaintext, nil
}

// Overhead returns nonce size + GCM tag size.
func (e *AESGCM) Overhead() int {
	return gcmNonceSize + e.aead.Overhead()
}

// XChaCha20Poly1305 uses 24-byte random nonces, large enough that random
// draws do not collide in practice.
type XChaCha20Poly1305 struct {
	aead cipher.AEAD
}

// NewXChaCha20Poly1305 creates an XChaCha20-Poly1305 cipher with a 32-byte key.
func NewXChaCha20Poly1305(key []byte) (*XChaCha20Poly1305, error) {
	a, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create XChaCha20-Poly1305: %w", err)
	}
	return &XChaCha20Poly1305{aead: a}, nil
}

// Seal encrypts plaintext under a fresh random 24-byte nonce.
func (x *XChaCha20Poly1305) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, x.aead.NonceSize(), x.aead.NonceSize()+len(plaintext)+x.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, ErrEncryptionFailed
	}
	return x.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts a blob produced by Seal.
func (x *XChaCha20Poly1305) Open(blob []byte) ([]byte, error) {
	ns := x.aead.NonceSize()
	if len(blob) < ns+x.aead.Overhead() {
		return nil, ErrDecodeFailure
	}
	plaintext, err := x.aead.Open(nil, blob[:ns], blob[ns:], nil)
	if err != nil {
		return nil, ErrDecodeFailure
	}
	return plaintext, nil
}

// Overhead returns nonce size + Poly1305 tag size.
func (x *XChaCha20Poly1305) Overhead() int {
	return x.aead.NonceSize() + x.aead.Overhead()
}

// TinkAEAD adapts a Tink AES256-GCM primitive without output prefix, so
// its ciphertexts have the same nonce || ciphertext || tag layout.
type TinkAEAD struct {
	a tink.AEAD
}

// NewTinkAEAD generates a fresh Tink keyset.
func NewTinkAEAD() (*TinkAEAD, error) {
	kh, err := keyset.NewHandle(aead.AES256GCMNoPrefixKeyTemplate())
	if err != nil {
		return nil, fmt.Errorf("generate tink keyset: %w", err)
	}
	return newTinkAEAD(kh)
}

// NewTinkAEADFromJSON loads a cleartext JSON keyset. The keyset must hold a
// single AES-GCM key with RAW output prefix.
func NewTinkAEADFromJSON(r io.Reader) (*TinkAEAD, error) {
	kh, err := insecurecleartextkeyset.Read(keyset.NewJSONReader(r))
	if err != nil {
		return nil, fmt.Errorf("read tink keyset: %w", err)
	}
	return newTinkAEAD(kh)
}

func newTinkAEAD(kh *keyset.Handle) (*TinkAEAD, error) {
	a, err := aead.New(kh)
	if err != nil {
		return nil, fmt.Errorf("tink aead primitive: %w", err)
	}
	return &TinkAEAD{a: a}, nil
}

// Seal encrypts plaintext with the primitive of the keyset.
func (t *TinkAEAD) Seal(plaintext []byte) ([]byte, error) {
	ct, err := t.a.Encrypt(plaintext, nil)
	if err != nil {
		return nil, ErrEncryptionFailed
	}
	return ct, nil
}

// Open authenticates and decrypts a blob produced by Seal.
func (t *TinkAEAD) Open(blob []byte) ([]byte, error) {
	pt, err := t.a.Decrypt(blob, nil)
	if err != nil {
		return nil, ErrDecodeFailure
	}
	return pt, nil
}

// Overhead returns nonce size + GCM tag size.
func (t *TinkAEAD) Overhead() int {
	return gcmNonceSize + 16
}

// NewSessionKey draws a random 32-byte key.
func NewSessionKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("draw session key: %w", err)
	}
	return key, nil
}

// DeriveKey stretches secret into a 32-byte session key bound to context.
func DeriveKey(context string, secret []byte) []byte {
	key := make([]byte, KeySize)
	blake3.DeriveKey(context, secret, key)
	return key
}

// Codec turns Blocks into EncryptedBlobs and back. Every block, dummy or
// real, is encoded to the same plaintext length before sealing, so every
// blob produced by one Codec has length BlobSize.
type Codec struct {
	aead   AEAD
	layout blockLayout
}

// NewCodec wraps an AEAD with the canonical block layout.
func NewCodec(a AEAD, maxKeySize, maxValueSize int) *Codec {
	return &Codec{aead: a, layout: blockLayout{maxKey: maxKeySize, maxValue: maxValueSize}}
}

// NewCodecFromConfig builds the cipher named by cfg.Cipher. The Tink cipher
// generates its own keyset and ignores key.
func NewCodecFromConfig(cfg Config, key []byte) (*Codec, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	var a AEAD
	switch cfg.Cipher {
	case CipherXChaCha:
		a, err = NewXChaCha20Poly1305(key)
	case CipherTinkAESGCM:
		a, err = NewTinkAEAD()
	default:
		a, err = NewAESGCM(key)
	}
	if err != nil {
		return nil, err
	}
	return NewCodec(a, cfg.MaxKeySize, cfg.MaxValueSize), nil
}

// BlobSize returns the length of every blob this codec produces.
func (c *Codec) BlobSize() int {
	return c.layout.size() + c.aead.Overhead()
}

// Encrypt encodes and seals b.
func (c *Codec) Encrypt(b Block) (EncryptedBlob, error) {
	pt, err := c.layout.encode(b)
	if err != nil {
		return nil, err
	}
	ct, err := c.aead.Seal(pt)
	if errors.Is(err, ErrEncryptionFailed) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return ct, nil
}

// Dummy returns a freshly encrypted dummy block.
func (c *Codec) Dummy() (EncryptedBlob, error) {
	return c.Encrypt(Block{IsDummy: true})
}

// Decrypt authenticates and decodes a blob. Tampered or malformed blobs
// return ErrDecodeFailure and never a partial block.
func (c *Codec) Decrypt(blob EncryptedBlob) (Block, error) {
	pt, err := c.aead.Open(blob)
	if err != nil {
		return Block{}, ErrDecodeFailure
	}
	return c.layout.decode(pt)
}
