package mqtt

import "strings"

// DefaultTopicPrefix roots every topic when none is configured.
const DefaultTopicPrefix = "recordstore"

// Topics builds the topic hierarchy under one prefix:
//
//	<prefix>/status                 retained online/offline status
//	<prefix>/tables/<table>/<op>    one event per committed write
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.TrimSuffix(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// Status returns the retained status topic.
//
// Example: recordstore/status
func (t Topics) Status() string {
	return t.prefix() + "/status"
}

// TableChange returns the topic for changes of one kind to one table.
//
// Example: recordstore/tables/users/upsert
func (t Topics) TableChange(table, op string) string {
	return t.prefix() + "/tables/" + table + "/" + op
}

// AllTableChanges returns a wildcard matching every table change.
//
// Example: recordstore/tables/#
func (t Topics) AllTableChanges() string {
	return t.prefix() + "/tables/#"
}
