package wcbridge

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"moff.io/hedera-dapp/pkg/errors"
)

var (
	ErrInvalidPadding = errors.New("invalid pkcs7 padding")
	ErrHmacMismatch   = errors.New("inconsistent session message hmac")
)

// KeySize is the length of the shared AES-256 session key.
const KeySize = 256 / 8

func Aes256Encrypt(content, encryptionKey, iv []byte) ([]byte, error) {
	bPlaintext := pkcs7Padding(content, aes.BlockSize)
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "create new cipher block")
	}
	ciphertext := make([]byte, len(bPlaintext))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, bPlaintext)
	return ciphertext, nil
}

func Aes256Decrypt(cipherText, encryptionKey, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "create new cipher block")
	}
	if len(cipherText) == 0 || len(cipherText)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext is not a multiple of the block size")
	}
	plain := make([]byte, len(cipherText))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plain, cipherText)
	return pkcs7Unpadding(plain, aes.BlockSize)
}

func pkcs7Padding(content []byte, blockSize int) []byte {
	padding := blockSize - len(content)%blockSize
	padText := bytes.Repeat([]byte{byte(padding)}, padding)
	return append(append([]byte(nil), content...), padText...)
}

func pkcs7Unpadding(content []byte, blockSize int) ([]byte, error) {
	n := len(content)
	if n == 0 {
		return nil, ErrInvalidPadding
	}
	padding := int(content[n-1])
	if padding == 0 || padding > blockSize || padding > n {
		return nil, ErrInvalidPadding
	}
	for _, b := range content[n-padding:] {
		if int(b) != padding {
			return nil, ErrInvalidPadding
		}
	}
	return content[:n-padding], nil
}

func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func HmacSha256(data, secret []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(data)
	return h.Sum(nil)
}

// Payload is the encrypted body of a bridge pub message, hex encoded.
type Payload struct {
	Data string `json:"data"`
	Hmac string `json:"hmac"`
	IV   string `json:"iv"`
}

func (p *Payload) Marshal() string {
	s, _ := json.Marshal(p)
	return string(s)
}

func PayloadFromString(s string) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, errors.Wrap(err, "unmarshal wallet connect message payload")
	}
	return &p, nil
}

// Seal encrypts plaintext with a fresh iv and signs data||iv.
func Seal(plaintext, key []byte) (*Payload, error) {
	iv, err := GenerateRandomBytes(aes.BlockSize)
	if err != nil {
		return nil, errors.Wrap(err, "generate random bytes")
	}
	data, err := Aes256Encrypt(plaintext, key, iv)
	if err != nil {
		return nil, err
	}
	unsigned := append(append([]byte(nil), data...), iv...)
	return &Payload{
		Data: hex.EncodeToString(data),
		IV:   hex.EncodeToString(iv),
		Hmac: hex.EncodeToString(HmacSha256(unsigned, key)),
	}, nil
}

// Open verifies the hmac before decrypting.
func Open(p *Payload, key []byte) ([]byte, error) {
	iv, err := hex.DecodeString(p.IV)
	if err != nil {
		return nil, errors.Wrap(err, "decode iv hex")
	}
	data, err := hex.DecodeString(p.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decode cipher hex")
	}
	// 校验hmac一致性
	unsigned := append(append([]byte(nil), data...), iv...)
	expected := HmacSha256(unsigned, key)
	got, err := hex.DecodeString(p.Hmac)
	if err != nil || !hmac.Equal(expected, got) {
		return nil, ErrHmacMismatch
	}
	return Aes256Decrypt(data, key, iv)
}
