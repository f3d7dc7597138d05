package coresec

import "testing"

func TestPasswordKeyStoreMaterialIsThePasswordItself(t *testing.T) {
	ks := PasswordKeyStore{}
	got, err := ks.Material([]byte("ignored-blob"), "s3cret", "ignored-alias")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "s3cret" {
		t.Errorf("got %q", got)
	}
}
