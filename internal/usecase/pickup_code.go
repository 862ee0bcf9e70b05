package usecase

import (
	"crypto/rand"
	"strings"
)

// Crockford base32（I L O U を使わない）。32文字なので1バイト&31で偏りなし
const pickupAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const (
	pickupCodeChars = 12 // 60bit
	pickupGroupSize = 4
)

// RandomCodeGenerator は XXXX-XXXX-XXXX 形式の受け取りコードを作る
type RandomCodeGenerator struct{}

func (RandomCodeGenerator) NewCode() (string, error) {
	buf := make([]byte, pickupCodeChars)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var sb strings.Builder
	for i, b := range buf {
		if i > 0 && i%pickupGroupSize == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(pickupAlphabet[b&31])
	}
	return sb.String(), nil
}

// NormalizePickupCode は手入力のゆれ（小文字・空白・ハイフン・O/I/L）を吸収する。
// 形式が合わなければ false
func NormalizePickupCode(s string) (string, bool) {
	var raw strings.Builder
	for _, r := range strings.ToUpper(s) {
		switch r {
		case ' ', '-', '\t':
			continue
		case 'O':
			r = '0'
		case 'I', 'L':
			r = '1'
		}
		if !strings.ContainsRune(pickupAlphabet, r) {
			return "", false
		}
		raw.WriteRune(r)
	}
	code := raw.String()
	if len(code) != pickupCodeChars {
		return "", false
	}

	var sb strings.Builder
	for i := 0; i < len(code); i++ {
		if i > 0 && i%pickupGroupSize == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(code[i])
	}
	return sb.String(), true
}
