// Episodarr - Anime Episode Classification and Trakt List Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/episodarr

package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	tokenEncryptionSalt = "episodarr-trakt-token"
	tokenEncryptionInfo = "token-encryption-v1"
	aesKeySize          = 32
	gcmNonceSize        = 12
)

var (
	ErrEmptySecret        = errors.New("token secret cannot be empty")
	ErrEmptyPlaintext     = errors.New("plaintext cannot be empty")
	ErrEmptyCiphertext    = errors.New("ciphertext cannot be empty")
	ErrDecryptionFailed   = errors.New("decryption failed: invalid ciphertext or authentication tag")
	ErrInvalidCiphertext  = errors.New("invalid ciphertext format")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// TokenEncryptor seals OAuth tokens at rest with AES-256-GCM.
//
// The key is derived from security.token_secret with HKDF-SHA256, so the
// secret itself never touches disk. Ciphertext layout is
// base64(nonce || sealed), with a fresh random nonce per call.
type TokenEncryptor struct {
	cipher cipher.AEAD
}

// NewTokenEncryptor derives the key and prepares the AEAD.
func NewTokenEncryptor(secret string) (*TokenEncryptor, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key, err := deriveKey(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &TokenEncryptor{cipher: gcm}, nil
}

// Encrypt returns base64(nonce || ciphertext).
func (e *TokenEncryptor) Encrypt(plaintext []byte) (string, error) {
	if len(plaintext) == 0 {
		return "", ErrEmptyPlaintext
	}
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.cipher.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (e *TokenEncryptor) Decrypt(ciphertext string) ([]byte, error) {
	if ciphertext == "" {
		return nil, ErrEmptyCiphertext
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode failed: %s", ErrInvalidCiphertext, err.Error())
	}
	if len(data) < gcmNonceSize+1+e.cipher.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := e.cipher.Open(nil, data[:gcmNonceSize], data[gcmNonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// MaskCredential keeps only the last four characters, for logs and CLI output.
func MaskCredential(credential string) string {
	if credential == "" {
		return ""
	}
	if len(credential) <= 4 {
		return "****"
	}
	return "****..." + credential[len(credential)-4:]
}

func deriveKey(secret string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(secret), []byte(tokenEncryptionSalt), []byte(tokenEncryptionInfo))
	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to read HKDF output: %w", err)
	}
	return key, nil
}
