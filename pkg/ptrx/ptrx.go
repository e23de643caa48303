package ptrx

// StringOrNil returns nil for the empty string, a pointer otherwise.
func StringOrNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
