// Package feed loads vulnerability records from JSON-lines files. A feed
// may carry a detached OpenPGP signature, which is checked against a
// keyring before any record is parsed.
package feed

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/zero-day-ai/sentinel/parser"
	"github.com/zero-day-ai/sentinel/vuln"
)

var (
	// ErrRead indicates the feed, its signature or the keyring could not be
	// read.
	ErrRead = errors.New("cannot read feed")

	// ErrSignature indicates the feed does not match its signature or was
	// not signed by a key in the keyring.
	ErrSignature = errors.New("feed signature verification failed")
)

// Options configures Load.
type Options struct {
	// SignatureFile is a detached signature over the feed, armored or
	// binary. Empty skips verification.
	SignatureFile string

	// KeyringFile holds the public keys allowed to sign the feed. Required
	// with SignatureFile.
	KeyringFile string
}

// Feed is a loaded record file.
type Feed struct {
	Records []vuln.Vulnerability

	// Signer is the hex fingerprint of the verifying key, empty for an
	// unsigned feed.
	Signer string
}

// Load reads path, verifies it when opts names a signature, and parses one
// record per line. Records are not validated here.
func Load(path string, opts Options) (*Feed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	f := &Feed{}
	if opts.SignatureFile != "" {
		if opts.KeyringFile == "" {
			return nil, fmt.Errorf("%w: no keyring for signature %s", ErrSignature, opts.SignatureFile)
		}
		keyring, err := ReadKeyring(opts.KeyringFile)
		if err != nil {
			return nil, err
		}
		sig, err := os.ReadFile(opts.SignatureFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRead, err)
		}
		signer, err := Verify(keyring, data, sig)
		if err != nil {
			return nil, err
		}
		f.Signer = signer
	}

	f.Records, err = parser.ParseJSONLines[vuln.Vulnerability](data)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ReadKeyring reads an armored or binary public keyring.
func ReadKeyring(path string) (openpgp.EntityList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(raw))
	if err != nil {
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: keyring %s: %w", ErrRead, path, err)
		}
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: keyring %s has no keys", ErrRead, path)
	}
	return entities, nil
}

// Verify checks a detached signature over data and returns the signer's
// fingerprint.
func Verify(keyring openpgp.KeyRing, data, sig []byte) (string, error) {
	var (
		signer *openpgp.Entity
		err    error
	)
	if isArmored(sig) {
		signer, err = openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(sig), nil)
	} else {
		signer, err = openpgp.CheckDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(sig), nil)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSignature, err)
	}
	return fmt.Sprintf("%X", signer.PrimaryKey.Fingerprint), nil
}

func isArmored(sig []byte) bool {
	return strings.HasPrefix(string(bytes.TrimSpace(sig)), "-----BEGIN PGP SIGNATURE-----")
}
