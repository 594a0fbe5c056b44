package domain

// DefaultKeyPrefix namespaces every key the gateway writes to the store.
const DefaultKeyPrefix = "codeforge:"
