package storage

import (
	"errors"
	"math/rand"
	"strconv"
)

// Codes are 2 or 3 decimal digits, a space of about a thousand values. The tiny space is
// deliberate, codes have to be easy to type and say aloud; catalogs beyond
// ~1000 entries need a wider alphabet, not more retries.
const codeAttempts = 2000

// ErrCodesExhausted means every 3-digit code is taken. Fatal for the one
// ingestion that hit it; the registry itself is untouched.
var ErrCodesExhausted = errors.New("code space exhausted")

// AllocateCode picks a free 2- or 3-digit numeric code by rejection
// sampling: length chosen uniformly, then digits uniformly, retried while
// the code is taken. After the attempt budget it falls back to scanning
// the 3-digit space so termination is guaranteed.
func (s *Store) AllocateCode() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := 0; i < codeAttempts; i++ {
		length := 2 + rand.Intn(2)
		code := randomDigits(length)
		if _, taken := s.movies[code]; !taken {
			return code, nil
		}
	}

	// The random walk kept colliding; the space must be nearly full. Pick
	// uniformly among whatever 3-digit codes remain free.
	free := make([]string, 0, 900)
	for n := 100; n < 1000; n++ {
		code := strconv.Itoa(n)
		if _, taken := s.movies[code]; !taken {
			free = append(free, code)
		}
	}
	if len(free) == 0 {
		return "", ErrCodesExhausted
	}
	return free[rand.Intn(len(free))], nil
}

func randomDigits(length int) string {
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = byte('0' + rand.Intn(10))
	}
	return string(buf)
}
