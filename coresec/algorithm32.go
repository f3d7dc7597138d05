package coresec

import (
	"bytes"
	"crypto/md5"
	"crypto/rc4"
)

// computeEncryptionKey implements ISO 32000-1 Algorithm 2 ("computing an
// encryption key"): pad the password, mix in O, P (little-endian), the
// first file ID string, and (for R>=4 with EncryptMetadata false) the
// 0xFFFFFFFF marker, then MD5 — hashed 50 more times for R>=3.
func computeEncryptionKey(password, o []byte, p int32, id0 []byte, r, keyLen int, encryptMetadata bool) []byte {
	pw := padPassword(password)

	h := md5.New()
	h.Write(pw)
	h.Write(o)
	h.Write([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})
	h.Write(id0)
	if r >= 4 && !encryptMetadata {
		h.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}
	sum := h.Sum(nil)

	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum2 := md5.Sum(sum[:keyLen])
			sum = sum2[:]
		}
	}

	if keyLen > len(sum) {
		keyLen = len(sum)
	}
	return append([]byte{}, sum[:keyLen]...)
}

func padPassword(password []byte) []byte {
	out := make([]byte, 32)
	n := copy(out, password)
	copy(out[n:], padding)
	return out
}

// computeU implements Algorithm 3.4 (R2) / 3.5 (R3, R4): the value stored
// in /U, used to authenticate a candidate user password.
func computeU(key []byte, id0 []byte, r int) []byte {
	if r == 2 {
		out := make([]byte, 32)
		copy(out, padding)
		c, _ := rc4.NewCipher(key)
		c.XORKeyStream(out, out)
		return out
	}

	h := md5.New()
	h.Write(padding)
	h.Write(id0)
	sum := h.Sum(nil)

	c, _ := rc4.NewCipher(key)
	c.XORKeyStream(sum, sum)

	for i := 1; i <= 19; i++ {
		keyN := xorKeyByte(key, byte(i))
		c, _ := rc4.NewCipher(keyN)
		c.XORKeyStream(sum, sum)
	}

	// Algorithm 3.5 pads the 16-byte result with 16 arbitrary bytes;
	// comparison only ever uses the first 16.
	out := make([]byte, 32)
	copy(out, sum)
	return out
}

func xorKeyByte(key []byte, x byte) []byte {
	out := make([]byte, len(key))
	for i, b := range key {
		out[i] = b ^ x
	}
	return out
}

// authenticateUserPassword implements Algorithm 3.6: derive the
// encryption key from password and compare the computed U value against
// the stored one (only the first 16 bytes, for R>=3).
func authenticateUserPassword(password, o, u []byte, p int32, id0 []byte, r, keyLen int, encryptMetadata bool) ([]byte, bool) {
	key := computeEncryptionKey(password, o, p, id0, r, keyLen, encryptMetadata)
	computed := computeU(key, id0, r)

	n := 32
	if r >= 3 {
		n = 16
	}
	if len(u) < n || !bytes.Equal(computed[:n], u[:n]) {
		return nil, false
	}
	return key, true
}

// recoverUserPasswordFromOwner implements Algorithm 3.7: derive an RC4
// key from the owner password via Algorithm 3.3, then decrypt /O (with
// the R>=3 cascade of 20 XOR'd-key RC4 passes in reverse) to recover the
// user password padding string.
func recoverUserPasswordFromOwner(ownerPassword, o []byte, r, keyLen int) ([]byte, bool) {
	pw := padPassword(ownerPassword)
	sum := md5.Sum(pw)
	key := sum[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum2 := md5.Sum(key[:keyLen])
			key = sum2[:]
		}
	}
	if keyLen > len(key) {
		keyLen = len(key)
	}
	key = key[:keyLen]

	out := append([]byte{}, o...)
	if len(out) > 32 {
		out = out[:32]
	}
	if r == 2 {
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, false
		}
		c.XORKeyStream(out, out)
	} else {
		for i := 19; i >= 0; i-- {
			keyN := xorKeyByte(key, byte(i))
			c, err := rc4.NewCipher(keyN)
			if err != nil {
				return nil, false
			}
			c.XORKeyStream(out, out)
		}
	}
	return out, true
}
