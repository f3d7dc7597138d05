package coresec

import "github.com/kuglerb/pdflex/corelex"

// PasswordKeyStore is the trivial corelex.KeyStore for the Standard
// security handler: the "material" Prepare needs is just the password
// bytes themselves (blob and alias are unused, kept only so the type
// satisfies the collaborator interface spec.md §6 defines for handlers
// that do need a certificate blob, e.g. public-key security).
type PasswordKeyStore struct{}

var _ corelex.KeyStore = PasswordKeyStore{}

func (PasswordKeyStore) Material(blob []byte, password string, alias string) ([]byte, error) {
	return []byte(password), nil
}
