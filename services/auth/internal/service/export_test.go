package service

// SetPasswordComparer swaps the argon2 comparison so tests can observe it.
func SetPasswordComparer(s AuthService, compare func(password, hash string) (bool, error)) {
	s.(*authService).compare = compare
}
