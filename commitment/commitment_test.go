package commitment

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestCommitOpen(t *testing.T) {
	c := qt.New(t)

	value := EncodeBytes([]byte("choice=7"))
	r := []byte("randomizer-bytes-000000000000000")

	commitment := Commit(value, r)
	c.Assert(len(commitment), qt.Equals, Size)
	c.Assert(Open(commitment, value, r), qt.IsTrue)
}

func TestOpenRejectsWrongValue(t *testing.T) {
	c := qt.New(t)

	value := EncodeBytes([]byte("choice=7"))
	r := []byte("randomizer")
	commitment := Commit(value, r)

	c.Assert(Open(commitment, EncodeBytes([]byte("choice=8")), r), qt.IsFalse)
	c.Assert(Open(commitment, value, []byte("other-r")), qt.IsFalse)
}

func TestEncodeBytesDistinguishesInputs(t *testing.T) {
	c := qt.New(t)

	a := EncodeBytes([]byte("abcd"))
	b := EncodeBytes([]byte("ab"))
	c.Assert(a, qt.Not(qt.DeepEquals), b)
}
