package docdb

import (
	"testing"
)

func TestSuccessor(t *testing.T) {
	deepEqual(t, successor(x("0102")), x("0103"))
	deepEqual(t, successor(x("01ff")), x("02"))
	deepEqual(t, successor(x("ffff")), nil)
	deepEqual(t, successor(nil), nil)
}

func TestSplitLastByte(t *testing.T) {
	a, b, ok := splitLastByte("a:b:c", ':')
	if !ok || a != "a:b" || b != "c" {
		t.Fatalf("splitLastByte = (%q, %q, %v), wanted (\"a:b\", \"c\", true)", a, b, ok)
	}

	a, b, ok = splitLastByte("abc", ':')
	if ok || a != "abc" || b != "" {
		t.Fatalf("splitLastByte(no sep) = (%q, %q, %v), wanted (\"abc\", \"\", false)", a, b, ok)
	}
}

func TestHexstr(t *testing.T) {
	if got := hexstr(nil); got != "<nil>" {
		t.Fatalf("hexstr(nil) = %q, wanted <nil>", got)
	}
	if got := hexstr([]byte{}); got != "<empty>" {
		t.Fatalf("hexstr(empty) = %q, wanted <empty>", got)
	}
	if got := hexstr([]byte{0xAA, 0xBB}); got != "aabb" {
		t.Fatalf("hexstr = %q, wanted aabb", got)
	}
}

func TestKeyHelpers(t *testing.T) {
	c := &Collection{name: "task", path: collectionPath("task")}
	deepEqual(t, string(rune(sepByte)), sep)
	deepEqual(t, c.primaryKey("1"), "task\x03\x031")
	deepEqual(t, c.entryKey(idIndex, "1", "1"), "task\x03id\x031\x031")
	deepEqual(t, c.entryKey("tags", "job", "7"), "task\x03tags\x03job\x037")

	value, id, ok := splitEntry("job\x037")
	if !ok || value != "job" || id != "7" {
		t.Errorf("** splitEntry = (%q, %q, %v)", value, id, ok)
	}
	deepEqual(t, groupOf(c.entryKey("tags", "job", "7")), c.groupPrefix("tags", "job"))
	deepEqual(t, pastGroup(c.groupPrefix("tags", "job")), "task\x03tags\x03job\x04")

	if !isSentinel(sentinelEmpty) || !isSentinel(sentinelNonEmpty) || isSentinel("job") {
		t.Errorf("** isSentinel misclassifies values")
	}
	for _, s := range []string{"", "a\x03b", "a\x04", "\x06"} {
		if validID(s) || validName(s) {
			t.Errorf("** %q accepted as id or name", s)
		}
	}
	if !validID("Task #1") {
		t.Errorf("** valid id rejected")
	}
}
