package domain

// KeyPrefix namespaces every key animedex writes to the key-value store.
const KeyPrefix = "animedex:"
