package testutil

// StubHasher "hashes" by prefixing, so tests can assert on stored credentials.
type StubHasher struct{}

func (StubHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}
