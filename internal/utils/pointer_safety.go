package utils

func Ptr[T any](v T) *T {
	return &v
}

// ValueOr returns *v, or fallback when v is nil.
func ValueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}
