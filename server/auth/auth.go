package auth

import (
	"fmt"

	"github.com/ecotterell/carelink/server/auth/key"
	"github.com/golang-jwt/jwt"
)

// CarelinkTokenClaims is the already-authenticated caller identity the
// server operates on - identity resolution itself happens upstream.
type CarelinkTokenClaims struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsCarer   bool   `json:"is_carer"`
	jwt.StandardClaims
}

func EncodeJWT(claims CarelinkTokenClaims, keyPair *key.KeyPair) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod("RS256"), claims)

	tokenString, err := token.SignedString(keyPair.PrivateKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func DecodeJWT(tokenString string, keyPair *key.KeyPair) (*CarelinkTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CarelinkTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		// validate the alg is what you expect:
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return keyPair.PublicKey, nil
	})

	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid jwt: %v", err)
	}

	tokenClaims, ok := token.Claims.(*CarelinkTokenClaims)
	if !ok {
		return nil, fmt.Errorf("unable to assert token.Claims to CarelinkTokenClaims")
	}

	return tokenClaims, nil
}
