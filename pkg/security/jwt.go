// Package security 登录令牌的签发与校验（HMAC JWT）
package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lk2023060901/xdooria-netclient/pkg/config"
)

// JWTConfig JWT 配置
type JWTConfig struct {
	// 签名密钥
	SecretKey string `mapstructure:"secret_key" json:"secret_key" yaml:"secret_key"`

	// 签名算法，HS256、HS384 或 HS512
	Algorithm string `mapstructure:"algorithm" json:"algorithm" yaml:"algorithm" validate:"omitempty,oneof=HS256 HS384 HS512"`

	// Token 过期时间
	ExpiresIn time.Duration `mapstructure:"expires_in" json:"expires_in" yaml:"expires_in"`

	// 签发者
	Issuer string `mapstructure:"issuer" json:"issuer" yaml:"issuer"`
}

// Claims 通用 JWT Claims
type Claims struct {
	jwt.RegisteredClaims

	// Payload 自定义载荷，完全由调用方决定内容
	Payload map[string]any `json:"payload,omitempty"`
}

// DefaultJWTConfig 返回默认 JWT 配置
func DefaultJWTConfig() *JWTConfig {
	return &JWTConfig{
		Algorithm: "HS256",
		ExpiresIn: 24 * time.Hour,
	}
}

// JWTManager JWT 管理器
type JWTManager struct {
	config *JWTConfig
	method jwt.SigningMethod
}

// NewJWTManager 创建 JWT 管理器
func NewJWTManager(cfg *JWTConfig) (*JWTManager, error) {
	newCfg, err := config.MergeConfig(DefaultJWTConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if newCfg.SecretKey == "" {
		return nil, ErrSecretKeyEmpty
	}

	var method jwt.SigningMethod
	switch strings.ToUpper(newCfg.Algorithm) {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: %s", ErrAlgorithmInvalid, newCfg.Algorithm)
	}

	return &JWTManager{config: newCfg, method: method}, nil
}

// GenerateToken 生成 Token，未设置 ExpiresAt 时使用配置的有效期
func (m *JWTManager) GenerateToken(claims *Claims) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.config.ExpiresIn))
	}
	if m.config.Issuer != "" && claims.Issuer == "" {
		claims.Issuer = m.config.Issuer
	}

	return jwt.NewWithClaims(m.method, claims).SignedString([]byte(m.config.SecretKey))
}

// ValidateToken 验证 Token
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != m.method.Alg() {
			return nil, ErrAlgorithmMismatch
		}
		return []byte(m.config.SecretKey), nil
	})
	if err != nil {
		return nil, wrapError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// wrapError 将 jwt 库错误转换为本包错误
func wrapError(err error) error {
	switch {
	case errors.Is(err, ErrAlgorithmMismatch):
		return ErrAlgorithmMismatch
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotValidYet
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
