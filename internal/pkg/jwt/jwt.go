package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer 签发方，校验时要求一致
const Issuer = "multichat"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims JWT Claims结构
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// JWT JWT工具
type JWT struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewJWT 创建JWT工具实例；expiration <= 0 时签发的 token 不过期
func NewJWT(secret string, expiration time.Duration) *JWT {
	return &JWT{
		secret:     []byte(secret),
		expiration: expiration,
		now:        time.Now,
	}
}

// GenerateToken 为用户签发 Access Token
func (j *JWT) GenerateToken(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := j.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if j.expiration > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(j.expiration))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// GetExpiration 获取过期时间
func (j *JWT) GetExpiration() time.Duration {
	return j.expiration
}

// ValidateToken 验证Token并返回Claims
func (j *JWT) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(j.now))

	if err != nil {
		// jwt/v5 使用 errors.Is 来检查错误类型
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
