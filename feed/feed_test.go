package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/sentinel/vuln"
)

type fixture struct {
	dir     string
	data    string
	keyring string
	signer  *openpgp.Entity
}

func newEntity(t *testing.T, name string) *openpgp.Entity {
	t.Helper()
	e, err := openpgp.NewEntity(name, "", name+"@example.com", nil)
	require.NoError(t, err)
	return e
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func recordLines(t *testing.T) []byte {
	t.Helper()
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	tmpl := vuln.Template{Type: "Broken Object Level Authorization", OWASPID: "API1:2023", Description: "object IDs are not checked", Severity: vuln.SeverityHigh}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := 1; i <= 3; i++ {
		ep := vuln.Endpoint{Method: vuln.MethodGet, Path: fmt.Sprintf("/api/v1/orders/%d", i)}
		require.NoError(t, enc.Encode(vuln.NewRecord(fmt.Sprintf("feed-%d", i), tmpl, ep, at)))
	}
	return buf.Bytes()
}

func armoredKeyring(t *testing.T, entities ...*openpgp.Entity) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	for _, e := range entities {
		require.NoError(t, e.Serialize(w))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	signer := newEntity(t, "feed-signer")
	return fixture{
		dir:     dir,
		data:    writeFile(t, filepath.Join(dir, "records.jsonl"), recordLines(t)),
		keyring: writeFile(t, filepath.Join(dir, "keys.asc"), armoredKeyring(t, signer)),
		signer:  signer,
	}
}

func (f fixture) sign(t *testing.T, armored bool) string {
	t.Helper()
	data, err := os.ReadFile(f.data)
	require.NoError(t, err)

	var sig bytes.Buffer
	if armored {
		require.NoError(t, openpgp.ArmoredDetachSign(&sig, f.signer, bytes.NewReader(data), nil))
		return writeFile(t, filepath.Join(f.dir, "records.jsonl.asc"), sig.Bytes())
	}
	require.NoError(t, openpgp.DetachSign(&sig, f.signer, bytes.NewReader(data), nil))
	return writeFile(t, filepath.Join(f.dir, "records.jsonl.sig"), sig.Bytes())
}

func TestLoad_Unsigned(t *testing.T) {
	f := newFixture(t)

	got, err := Load(f.data, Options{})

	require.NoError(t, err)
	assert.Len(t, got.Records, 3)
	assert.Equal(t, "feed-1", got.Records[0].ID)
	assert.Empty(t, got.Signer)
}

func TestLoad_Signed(t *testing.T) {
	f := newFixture(t)
	want := fmt.Sprintf("%X", f.signer.PrimaryKey.Fingerprint)

	for _, armored := range []bool{true, false} {
		t.Run(fmt.Sprintf("armored=%v", armored), func(t *testing.T) {
			got, err := Load(f.data, Options{SignatureFile: f.sign(t, armored), KeyringFile: f.keyring})

			require.NoError(t, err)
			assert.Len(t, got.Records, 3)
			assert.Equal(t, want, got.Signer)
		})
	}
}

func TestLoad_SignatureFailures(t *testing.T) {
	t.Run("tampered data", func(t *testing.T) {
		f := newFixture(t)
		sig := f.sign(t, true)
		data, err := os.ReadFile(f.data)
		require.NoError(t, err)
		writeFile(t, f.data, bytes.Replace(data, []byte("feed-2"), []byte("feed-9"), 1))

		_, err = Load(f.data, Options{SignatureFile: sig, KeyringFile: f.keyring})

		assert.ErrorIs(t, err, ErrSignature)
	})

	t.Run("unknown signer", func(t *testing.T) {
		f := newFixture(t)
		sig := f.sign(t, true)
		other := writeFile(t, filepath.Join(f.dir, "other.asc"), armoredKeyring(t, newEntity(t, "someone-else")))

		_, err := Load(f.data, Options{SignatureFile: sig, KeyringFile: other})

		assert.ErrorIs(t, err, ErrSignature)
	})

	t.Run("missing keyring option", func(t *testing.T) {
		f := newFixture(t)

		_, err := Load(f.data, Options{SignatureFile: f.sign(t, true)})

		assert.ErrorIs(t, err, ErrSignature)
	})
}

func TestLoad_ReadFailures(t *testing.T) {
	f := newFixture(t)
	sig := f.sign(t, true)
	garbage := writeFile(t, filepath.Join(f.dir, "garbage.asc"), []byte("not a key"))

	tests := []struct {
		name string
		path string
		opts Options
	}{
		{"missing feed", filepath.Join(f.dir, "absent.jsonl"), Options{}},
		{"missing signature", f.data, Options{SignatureFile: filepath.Join(f.dir, "absent.asc"), KeyringFile: f.keyring}},
		{"missing keyring", f.data, Options{SignatureFile: sig, KeyringFile: filepath.Join(f.dir, "absent-keys.asc")}},
		{"unreadable keyring", f.data, Options{SignatureFile: sig, KeyringFile: garbage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path, tt.opts)

			assert.ErrorIs(t, err, ErrRead)
		})
	}
}

func TestLoad_MalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "bad.jsonl"), []byte("{\"id\":\"a\"}\n{oops\n"))

	_, err := Load(path, Options{})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRead)
	assert.Contains(t, err.Error(), "line 2")
}
