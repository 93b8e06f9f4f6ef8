package portal

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// rsaNoPadding 门户登录用的无填充 RSA：
// ciphertext = plaintext^e mod m，输入输出均为大端字节序，密文 hex 编码。
// 这不是通用的安全加密方案，只是门户登录协议的密码混淆步骤。
func rsaNoPadding(plaintext, modulusHex, exponentHex string) (string, error) {
	m, ok := new(big.Int).SetString(modulusHex, 16)
	if !ok {
		return "", fmt.Errorf("无法解析公钥 modulus: %q", modulusHex)
	}
	e, ok := new(big.Int).SetString(exponentHex, 16)
	if !ok {
		return "", fmt.Errorf("无法解析公钥 exponent: %q", exponentHex)
	}
	if m.Sign() <= 0 {
		return "", fmt.Errorf("公钥 modulus 非法: %q", modulusHex)
	}

	input := new(big.Int).SetBytes([]byte(plaintext))
	crypt := new(big.Int).Exp(input, e, m)
	return hex.EncodeToString(crypt.Bytes()), nil
}
