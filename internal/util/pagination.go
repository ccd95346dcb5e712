package util

const DefaultPageSize = 10

// Clamp normalizes skip/limit query values.
func Clamp(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = DefaultPageSize
	}
	return skip, limit
}
