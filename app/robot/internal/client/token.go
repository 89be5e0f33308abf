package client

import (
	"fmt"

	"github.com/lk2023060901/xdooria-netclient/pkg/security"
)

// IssueToken 用与服务端共享的密钥为 account 签发登录令牌
func IssueToken(cfg *security.JWTConfig, account string) (string, error) {
	m, err := security.NewJWTManager(cfg)
	if err != nil {
		return "", fmt.Errorf("create jwt manager: %w", err)
	}
	token, err := m.GenerateToken(&security.Claims{Payload: map[string]any{"account": account}})
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}
