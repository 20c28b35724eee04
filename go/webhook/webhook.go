// Package webhook has utility methods for authenticating webhook requests
// that are signed with the sender's RSA private key.
//
// The sender signs the exact bytes of the payload with RSASSA-PKCS1-v1_5 over
// a SHA-1 digest and sends the base64 encoded signature in a request header.
// Verification is sensitive to every byte of the payload, so callers must pass
// the payload exactly as it arrived, never a re-encoded form of it.
package webhook

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"net/http"
	"os"

	"go.perfhook.dev/infra/go/skerr"
)

// ErrAuthFailure is wrapped by every error that means the request could not
// be authenticated.
var ErrAuthFailure = errors.New("webhook authentication failed")

var (
	// ErrMissingSignature means the signature header was absent or empty.
	ErrMissingSignature = authError("missing signature")

	// ErrInvalidSignatureEncoding means the signature was not valid base64.
	ErrInvalidSignatureEncoding = authError("signature is not valid base64")

	// ErrVerificationFailed means the signature did not match the payload.
	ErrVerificationFailed = authError("signature verification failed")
)

type authErr struct {
	msg string
}

func authError(msg string) error {
	return &authErr{msg: msg}
}

func (e *authErr) Error() string { return e.msg }

func (e *authErr) Unwrap() error { return ErrAuthFailure }

// RSAVerifier verifies payload signatures against a single RSA public key.
// It holds no mutable state and is safe for concurrent use.
type RSAVerifier struct {
	pub *rsa.PublicKey
}

// NewRSAVerifier returns a verifier for the given key.
func NewRSAVerifier(pub *rsa.PublicKey) *RSAVerifier {
	return &RSAVerifier{pub: pub}
}

// Verify returns nil if signatureBase64 is a valid PKCS#1 v1.5 SHA-1
// signature of payload. Any other result is an error wrapping ErrAuthFailure.
func (v *RSAVerifier) Verify(payload []byte, signatureBase64 string) error {
	if signatureBase64 == "" {
		return ErrMissingSignature
	}
	sig, err := base64.StdEncoding.DecodeString(signatureBase64)
	if err != nil {
		return ErrInvalidSignatureEncoding
	}
	digest := sha1.Sum(payload)
	if err := rsa.VerifyPKCS1v15(v.pub, crypto.SHA1, digest[:], sig); err != nil {
		return ErrVerificationFailed
	}
	return nil
}

// VerifyRequest verifies the given payload against the base64 signature in
// the header named signatureHeader of r.
func (v *RSAVerifier) VerifyRequest(r *http.Request, signatureHeader string, payload []byte) error {
	return v.Verify(payload, r.Header.Get(signatureHeader))
}

// ParseRSAPublicKeyPEM parses a PEM encoded "PUBLIC KEY" (PKIX) or
// "RSA PUBLIC KEY" (PKCS#1) block.
func ParseRSAPublicKeyPEM(b []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, skerr.Fmt("no PEM block found")
	}
	switch block.Type {
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, skerr.Wrapf(err, "parsing PKIX public key")
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, skerr.Fmt("public key is a %T, not an RSA key", key)
		}
		return pub, nil
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, skerr.Wrapf(err, "parsing PKCS#1 public key")
		}
		return pub, nil
	default:
		return nil, skerr.Fmt("unsupported PEM block type %q", block.Type)
	}
}

// ReadRSAPublicKeyFile reads and parses a PEM encoded RSA public key file.
func ReadRSAPublicKeyFile(filename string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, skerr.Wrapf(err, "reading public key file")
	}
	pub, err := ParseRSAPublicKeyPEM(b)
	if err != nil {
		return nil, skerr.Wrapf(err, "in %s", filename)
	}
	return pub, nil
}
