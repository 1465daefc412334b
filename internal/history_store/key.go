package history_store

import "strings"

// ConversationKey identifies one user's memory partition with one companion
// under one model configuration.
type ConversationKey struct {
	EntityID  string
	ModelName string
	UserID    string
}

const keySeparator = ":"

// escapeKeyPart escapes separator occurrences so the derived storage key
// maps one-to-one with the tuple.
func escapeKeyPart(part string) string {
	part = strings.ReplaceAll(part, `\`, `\\`)
	return strings.ReplaceAll(part, keySeparator, `\`+keySeparator)
}

// StorageKey derives the Redis key for this conversation's sorted set.
func (k ConversationKey) StorageKey() string {
	return "history" + keySeparator + escapeKeyPart(k.EntityID) +
		keySeparator + escapeKeyPart(k.ModelName) +
		keySeparator + escapeKeyPart(k.UserID)
}

// rankKey is the sibling key holding the partition's monotonic rank counter.
func (k ConversationKey) rankKey() string {
	return k.StorageKey() + keySeparator + "rank"
}
