package utils

// PanicIfNeeded panics with err so the recovery middleware can map typed
// errors to their HTTP response.
func PanicIfNeeded(err error) {
	if err != nil {
		panic(err)
	}
}
