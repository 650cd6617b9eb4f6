package common

// StringPtr returns a pointer to the given string
func StringPtr(s string) *string {
	return &s
}

// MetadataString returns a string value from artifact or message metadata.
func MetadataString(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return ""
	}
	if s, ok := metadata[key].(string); ok {
		return s
	}
	return ""
}
