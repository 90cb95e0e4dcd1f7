package pkg

import "golang.org/x/crypto/bcrypt"

const tokenHashCost = 12

func HashToken(token string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(token), tokenHashCost)
	return string(bytes), err
}

func TokenMatchesHash(token, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}
