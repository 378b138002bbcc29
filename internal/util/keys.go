package util

import "strings"

const sep = ":"

var escaper = strings.NewReplacer("%", "%25", ":", "%3A")

// EntryKey returns the deterministic storage key for a (namespace, key)
// pair. Separator characters inside either part are escaped so distinct
// pairs can never collide ("a:b"/"c" vs "a"/"b:c").
func EntryKey(namespace, key string) string {
	return "cfg" + sep + escaper.Replace(namespace) + sep + escaper.Replace(key)
}
