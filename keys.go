package docdb

import (
	"strings"

	"github.com/andreyvit/docdb/sortable"
)

// Key layout, for a collection c, field f, encoded value v and record id:
//
//	c \x03 \x03 id                primary entry, holds the encoded record
//	c \x03 "id" \x03 id \x03 id   id pseudo-index, holds id
//	c \x03 f \x03 v \x03 id       field index entry, holds id
//	\x03 key                      singleton record
//
// Array fields also get one sentinel entry whose value is \x06 followed by
// "0" for an empty array or "1" otherwise.
const (
	sep         = "\x03"
	afterSep    = "\x04"
	arrayMarker = "\x06"

	sepByte = '\x03'

	idIndex = "id"

	sentinelEmpty    = arrayMarker + "0"
	sentinelNonEmpty = arrayMarker + "1"
)

// reservedChars may not appear in collection names, field names or ids.
const reservedChars = "\x03\x04\x06"

func validName(s string) bool {
	return s != "" && !strings.ContainsAny(s, reservedChars)
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, reservedChars)
}

func collectionPath(name string) string { return name + sep }

func (c *Collection) primaryPrefix() string      { return c.path + sep }
func (c *Collection) primaryKey(id string) string { return c.path + sep + id }
func (c *Collection) indexPath(field string) string {
	return c.path + field + sep
}
func (c *Collection) entryKey(field, value, id string) string {
	return c.path + field + sep + value + sep + id
}
func (c *Collection) groupPrefix(field, value string) string {
	return c.path + field + sep + value + sep
}

func singletonKey(key string) string { return sep + key }

// splitEntry splits the part of an index key after the index path into the
// encoded value and the record id.
func splitEntry(rest string) (value, id string, ok bool) {
	return splitLastByte(rest, sepByte)
}

// groupOf returns the value-group prefix (path + value + sep) of an index key.
func groupOf(key string) string {
	i := strings.LastIndexByte(key, sepByte)
	if i < 0 {
		return key
	}
	return key[:i+1]
}

// pastGroup is the smallest key greater than every key of the given group.
func pastGroup(group string) string {
	return group[:len(group)-1] + afterSep
}

func isSentinel(value string) bool {
	return strings.HasPrefix(value, arrayMarker)
}

// nullValue encodes both missing fields and explicit nulls.
const nullValue = sortable.Null
