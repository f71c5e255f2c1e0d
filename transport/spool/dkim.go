// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package spool

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/emersion/go-msgauth/dkim"
)

var (
	// ErrNoSelector is returned if a Signer is created without a DKIM selector.
	ErrNoSelector = errors.New("DKIM selector must not be empty")

	// ErrNoPrivateKey is returned if the PEM data does not contain a supported private key.
	ErrNoPrivateKey = errors.New("no supported private key found in PEM data")

	// ErrNoSigningDomain is returned if neither the Signer nor the sender provide a domain.
	ErrNoSigningDomain = errors.New("unable to determine DKIM signing domain")
)

// signedHeaders are the header fields covered by the signature
var signedHeaders = []string{
	"from", "to", "reply-to", "subject", "date", "message-id", "mime-version", "content-type",
	"list-unsubscribe", "list-unsubscribe-post",
}

// Signer applies DKIM signatures to spooled messages.
type Signer struct {
	domain   string
	selector string
	key      crypto.Signer
}

// NewSigner returns a Signer for the given selector and key. If domain is empty, the domain of
// the sender address is used.
func NewSigner(selector, domain string, key crypto.Signer) (*Signer, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, ErrNoSelector
	}
	if key == nil {
		return nil, ErrNoPrivateKey
	}
	return &Signer{domain: strings.ToLower(strings.TrimSpace(domain)), selector: selector, key: key}, nil
}

// LoadSigner reads a PEM encoded PKCS#1 or PKCS#8 private key from keyPath and returns a Signer.
func LoadSigner(selector, domain, keyPath string) (*Signer, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read DKIM private key: %w", err)
	}
	key, err := parsePrivateKey(data)
	if err != nil {
		return nil, err
	}
	return NewSigner(selector, domain, key)
}

// Selector returns the DKIM selector of the Signer.
func (s *Signer) Selector() string {
	return s.selector
}

// Sign adds a DKIM-Signature header to message. Messages that already carry a signature are
// returned unchanged.
func (s *Signer) Sign(message []byte, from string) ([]byte, error) {
	if hasSignature(message) {
		return message, nil
	}
	domain := s.domain
	if domain == "" {
		domain = domainOf(from)
	}
	if domain == "" {
		return nil, ErrNoSigningDomain
	}

	opts := &dkim.SignOptions{
		Domain:                 domain,
		Selector:               s.selector,
		Signer:                 s.key,
		HeaderCanonicalization: dkim.CanonicalizationRelaxed,
		BodyCanonicalization:   dkim.CanonicalizationRelaxed,
		HeaderKeys:             presentHeaders(message),
	}
	var signed bytes.Buffer
	if err := dkim.Sign(&signed, bytes.NewReader(message), opts); err != nil {
		return nil, fmt.Errorf("failed to DKIM sign message: %w", err)
	}
	return signed.Bytes(), nil
}

// presentHeaders returns the signed header keys that occur in the message header
func presentHeaders(message []byte) []string {
	end := bytes.Index(message, []byte("\r\n\r\n"))
	if end < 0 {
		end = len(message)
	}
	header := bytes.ToLower(message[:end])
	keys := make([]string, 0, len(signedHeaders))
	for _, k := range signedHeaders {
		if bytes.HasPrefix(header, []byte(k+":")) || bytes.Contains(header, []byte("\n"+k+":")) {
			keys = append(keys, k)
		}
	}
	return keys
}

func parsePrivateKey(data []byte) (crypto.Signer, error) {
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			return nil, ErrNoPrivateKey
		}
		switch block.Type {
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse PKCS#1 private key: %w", err)
			}
			return key, nil
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse PKCS#8 private key: %w", err)
			}
			if signer, ok := key.(crypto.Signer); ok {
				return signer, nil
			}
			return nil, ErrNoPrivateKey
		}
		data = rest
	}
}

func domainOf(address string) string {
	address = strings.Trim(strings.TrimSpace(address), "<>")
	if i := strings.LastIndex(address, "@"); i >= 0 && i+1 < len(address) {
		return strings.ToLower(address[i+1:])
	}
	return ""
}

func hasSignature(message []byte) bool {
	upper := bytes.ToUpper(message)
	return bytes.HasPrefix(upper, []byte("DKIM-SIGNATURE:")) || bytes.Contains(upper, []byte("\nDKIM-SIGNATURE:"))
}
