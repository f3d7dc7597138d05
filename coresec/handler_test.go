package coresec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/kuglerb/pdflex/corelex"
)

func buildLegacyEncryptDict(t *testing.T, r, v int, keyBits int64, userPassword, ownerPassword []byte, id0 []byte, p int32) *corelex.Dict {
	t.Helper()
	keyLen := int(keyBits) / 8

	ownerKey := ownerKeyForTest(ownerPassword, r, keyLen)
	paddedUser := padPassword(userPassword)
	o := append([]byte{}, paddedUser...)
	if r == 2 {
		c := rc4CipherForTest(t, ownerKey)
		c.XORKeyStream(o, o)
	} else {
		for i := 0; i <= 19; i++ {
			c := rc4CipherForTest(t, xorKeyByte(ownerKey, byte(i)))
			c.XORKeyStream(o, o)
		}
	}

	key := computeEncryptionKey(userPassword, o, p, id0, r, keyLen, true)
	u := computeU(key, id0, r)

	d := corelex.NewDict()
	d.Set("Filter", corelex.NameVal("Standard"))
	d.Set("R", corelex.Int(int64(r)))
	d.Set("V", corelex.Int(int64(v)))
	d.Set("Length", corelex.Int(keyBits))
	d.Set("O", corelex.StringVal(o))
	d.Set("U", corelex.StringVal(u))
	d.Set("P", corelex.Int(int64(p)))
	return d
}

func TestHandlerPrepareLegacyRC4UserPassword(t *testing.T) {
	id0 := []byte("0123456789abcdef")
	dict := buildLegacyEncryptDict(t, 3, 2, 128, []byte("user"), []byte("owner"), id0, -44)

	h := New()
	if err := h.Prepare(dict, [][]byte{id0}, []byte("user")); err != nil {
		t.Fatal(err)
	}
	if h.aes {
		t.Error("V=2 should select RC4, not AES")
	}
}

func TestHandlerPrepareLegacyRecoversViaOwnerPassword(t *testing.T) {
	id0 := []byte("0123456789abcdef")
	dict := buildLegacyEncryptDict(t, 3, 2, 128, []byte("user"), []byte("owner"), id0, -44)

	h := New()
	if err := h.Prepare(dict, [][]byte{id0}, []byte("owner")); err != nil {
		t.Fatal(err)
	}
}

func TestHandlerPrepareLegacyWrongPasswordFails(t *testing.T) {
	id0 := []byte("0123456789abcdef")
	dict := buildLegacyEncryptDict(t, 3, 2, 128, []byte("user"), []byte("owner"), id0, -44)

	h := New()
	if err := h.Prepare(dict, [][]byte{id0}, []byte("nope")); err != ErrBadPassword {
		t.Fatalf("got %v", err)
	}
}

func TestHandlerDecryptStreamRC4RoundTrip(t *testing.T) {
	id0 := []byte("0123456789abcdef")
	dict := buildLegacyEncryptDict(t, 3, 2, 128, []byte("user"), []byte("owner"), id0, -44)

	h := New()
	if err := h.Prepare(dict, [][]byte{id0}, []byte("user")); err != nil {
		t.Fatal(err)
	}

	plaintext := []byte("the quick brown fox")
	key := h.objectKey(7, 0)
	ciphertext := append([]byte{}, plaintext...)
	c := rc4CipherForTest(t, key)
	c.XORKeyStream(ciphertext, ciphertext)

	got, err := h.DecryptStream(ciphertext, 7, 0)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(plaintext) {
		t.Errorf("got %q", got)
	}
}

func TestHandlerDecryptObjectDecryptsNestedStrings(t *testing.T) {
	id0 := []byte("0123456789abcdef")
	dict := buildLegacyEncryptDict(t, 3, 2, 128, []byte("user"), []byte("owner"), id0, -44)

	h := New()
	if err := h.Prepare(dict, [][]byte{id0}, []byte("user")); err != nil {
		t.Fatal(err)
	}

	plaintext := []byte("secret title")
	key := h.objectKey(12, 0)
	ciphertext := append([]byte{}, plaintext...)
	c := rc4CipherForTest(t, key)
	c.XORKeyStream(ciphertext, ciphertext)

	inner := corelex.NewDict()
	inner.Set("Title", corelex.StringVal(ciphertext))
	v := corelex.DictVal(inner)

	decrypted, err := h.DecryptObject(v, 12, 0)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := decrypted.Dict.Get("Title")
	s, _ := got.AsString()
	if string(s) != string(plaintext) {
		t.Errorf("got %q", s)
	}
}

func TestHandlerPrepareAESV3DerivesKeyFromUserPath(t *testing.T) {
	password := []byte("userpwd")
	validationSalt := []byte("VALSALT1")
	keySalt := []byte("KEYSALT1")
	fileKey := bytes.Repeat([]byte{0x42}, 32)

	validation := sha256Sum(append(append([]byte{}, password...), validationSalt...))
	u := append(append(append([]byte{}, validation...), validationSalt...), keySalt...)

	ik := sha256Sum(append(append([]byte{}, password...), keySalt...))
	cb, err := aes.NewCipher(ik)
	if err != nil {
		t.Fatal(err)
	}
	ue := make([]byte, len(fileKey))
	cipher.NewCBCEncrypter(cb, make([]byte, 16)).CryptBlocks(ue, fileKey)

	dict := corelex.NewDict()
	dict.Set("Filter", corelex.NameVal("Standard"))
	dict.Set("R", corelex.Int(5))
	dict.Set("V", corelex.Int(5))
	dict.Set("U", corelex.StringVal(u))
	dict.Set("UE", corelex.StringVal(ue))

	h := New()
	if err := h.Prepare(dict, nil, password); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(h.key, fileKey) {
		t.Errorf("got key %x, want %x", h.key, fileKey)
	}
	if !h.aes {
		t.Error("AESV3 should always select AES")
	}
}

func TestHandlerPrepareAESV3WrongPasswordFails(t *testing.T) {
	password := []byte("userpwd")
	validationSalt := []byte("VALSALT1")
	keySalt := []byte("KEYSALT1")

	validation := sha256Sum(append(append([]byte{}, password...), validationSalt...))
	u := append(append(append([]byte{}, validation...), validationSalt...), keySalt...)

	dict := corelex.NewDict()
	dict.Set("R", corelex.Int(5))
	dict.Set("U", corelex.StringVal(u))
	dict.Set("UE", corelex.StringVal(bytes.Repeat([]byte{0}, 32)))

	h := New()
	if err := h.Prepare(dict, nil, []byte("wrongpassword")); err != ErrBadPassword {
		t.Fatalf("got %v", err)
	}
}

func TestHandlerPrepareRejectsNonStandardFilter(t *testing.T) {
	dict := corelex.NewDict()
	dict.Set("Filter", corelex.NameVal("Adobe.PubSec"))
	dict.Set("R", corelex.Int(3))

	h := New()
	if err := h.Prepare(dict, nil, []byte("x")); err == nil {
		t.Error("expected an error for a non-Standard filter")
	}
}
