package service

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

const (
	otpMin = 100000
	otpMax = 999999
)

type OTPGenerator interface {
	Generate() (string, error)
}

// RandomOTPGenerator draws six-digit codes uniformly from [100000, 999999].
type RandomOTPGenerator struct{}

func (RandomOTPGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}
