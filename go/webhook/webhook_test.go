package webhook

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `{"id":1,"commit":"abc123","branch":"master","pull_request":false}`

func newKey(t *testing.T) *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, data []byte) []byte {
	digest := sha1.Sum(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, digest[:])
	require.NoError(t, err)
	return sig
}

func TestVerify_ValidSignature_Success(t *testing.T) {
	key := newKey(t)
	v := NewRSAVerifier(&key.PublicKey)
	sig := base64.StdEncoding.EncodeToString(sign(t, key, []byte(payload)))
	require.NoError(t, v.Verify([]byte(payload), sig))
}

func TestVerify_MissingSignature_AuthFailure(t *testing.T) {
	key := newKey(t)
	err := NewRSAVerifier(&key.PublicKey).Verify([]byte(payload), "")
	require.ErrorIs(t, err, ErrMissingSignature)
	require.ErrorIs(t, err, ErrAuthFailure)
}

func TestVerify_BadBase64_AuthFailure(t *testing.T) {
	key := newKey(t)
	err := NewRSAVerifier(&key.PublicKey).Verify([]byte(payload), "not base64!!")
	require.ErrorIs(t, err, ErrInvalidSignatureEncoding)
	require.ErrorIs(t, err, ErrAuthFailure)
}

func TestVerify_WrongKey_AuthFailure(t *testing.T) {
	signer := newKey(t)
	other := newKey(t)
	sig := base64.StdEncoding.EncodeToString(sign(t, signer, []byte(payload)))
	err := NewRSAVerifier(&other.PublicKey).Verify([]byte(payload), sig)
	require.ErrorIs(t, err, ErrVerificationFailed)
	require.ErrorIs(t, err, ErrAuthFailure)
}

func TestVerify_AnySingleBitFlip_Fails(t *testing.T) {
	key := newKey(t)
	v := NewRSAVerifier(&key.PublicKey)
	data := []byte(payload)
	sig := sign(t, key, data)

	for i := 0; i < len(data)*8; i++ {
		mutated := append([]byte(nil), data...)
		mutated[i/8] ^= 1 << (i % 8)
		require.ErrorIs(t, v.Verify(mutated, base64.StdEncoding.EncodeToString(sig)), ErrAuthFailure, "payload bit %d", i)
	}
	for i := 0; i < len(sig)*8; i++ {
		mutated := append([]byte(nil), sig...)
		mutated[i/8] ^= 1 << (i % 8)
		require.ErrorIs(t, v.Verify(data, base64.StdEncoding.EncodeToString(mutated)), ErrAuthFailure, "signature bit %d", i)
	}
}

func TestVerify_WhitespaceChange_Fails(t *testing.T) {
	key := newKey(t)
	v := NewRSAVerifier(&key.PublicKey)
	sig := base64.StdEncoding.EncodeToString(sign(t, key, []byte(payload)))
	require.Error(t, v.Verify([]byte(payload+"\n"), sig))
}

func TestVerifyRequest_ReadsHeader(t *testing.T) {
	key := newKey(t)
	v := NewRSAVerifier(&key.PublicKey)
	r := httptest.NewRequest("POST", "/notify", nil)
	r.Header.Set("Signature", base64.StdEncoding.EncodeToString(sign(t, key, []byte(payload))))
	require.NoError(t, v.VerifyRequest(r, "Signature", []byte(payload)))
	require.ErrorIs(t, v.VerifyRequest(r, "Other", []byte(payload)), ErrMissingSignature)
}

func TestParseRSAPublicKeyPEM_PKIXAndPKCS1(t *testing.T) {
	key := newKey(t)
	pkix, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pub, err := ParseRSAPublicKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkix}))
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub))

	pkcs1 := x509.MarshalPKCS1PublicKey(&key.PublicKey)
	pub, err = ParseRSAPublicKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: pkcs1}))
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub))
}

func TestParseRSAPublicKeyPEM_Garbage_ReturnsError(t *testing.T) {
	_, err := ParseRSAPublicKeyPEM([]byte("hello"))
	require.Error(t, err)
	_, err = ParseRSAPublicKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}}))
	require.Error(t, err)
}

func TestReadRSAPublicKeyFile(t *testing.T) {
	key := newKey(t)
	pkix, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	filename := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(filename, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkix}), 0644))
	pub, err := ReadRSAPublicKeyFile(filename)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub))

	_, err = ReadRSAPublicKeyFile(filepath.Join(t.TempDir(), "missing.pem"))
	require.Error(t, err)
}
