package apimodel

// Optional fields in request bodies, such as those of UpdateProfileRequest,
// are pointers so that an unset field is omitted rather than sent empty.

// Set returns a pointer to v for filling an optional field.
func Set[T any](v T) *T {
	return &v
}

// Get reads an optional field, giving the zero value when it was not sent.
func Get[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}
