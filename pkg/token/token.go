package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMalformed = errors.New("表单令牌格式错误")
	ErrSignature = errors.New("表单令牌签名无效")
	ErrExpired   = errors.New("表单令牌已过期")
	ErrVoter     = errors.New("表单令牌与当前用户不匹配")
)

// Payload 定义了需要被签名的数据结构。
// 令牌与voter-id cookie绑定，只有同一个浏览器提交的表单才能通过校验。
type Payload struct {
	VoterID  string `json:"v"`
	IssuedAt int64  `json:"t"`
}

// Signer 使用HMAC-SHA256签发和校验表单令牌
type Signer struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewSigner 使用给定的密钥创建Signer；密钥为空时生成一个32字节的随机密钥。
func NewSigner(secret string, maxAge time.Duration) (*Signer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("无法生成安全的密钥: %w", err)
		}
		fmt.Println("表单令牌HMAC密钥已随机生成。")
	}
	return &Signer{secret: key, maxAge: maxAge, now: time.Now}, nil
}

// Issue 为一个voter签发令牌，格式为 base64(payload).base64(signature)
func (s *Signer) Issue(voterID string) (string, error) {
	payloadBytes, err := json.Marshal(Payload{VoterID: voterID, IssuedAt: s.now().Unix()})
	if err != nil {
		return "", errors.New("无法序列化令牌payload")
	}
	encodedPayload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	return encodedPayload + "." + s.sign(encodedPayload), nil
}

// Validate 校验令牌的签名、有效期以及是否属于该voter
func (s *Signer) Validate(tokenStr, voterID string) error {
	encodedPayload, signatureB64, ok := strings.Cut(tokenStr, ".")
	if !ok || encodedPayload == "" || signatureB64 == "" {
		return ErrMalformed
	}

	// 1. 使用 hmac.Equal 进行时间恒定的比较，防止时序攻击
	actualSignature, err := base64.RawURLEncoding.DecodeString(signatureB64)
	if err != nil {
		return ErrMalformed
	}
	expectedSignature, _ := base64.RawURLEncoding.DecodeString(s.sign(encodedPayload))
	if !hmac.Equal(expectedSignature, actualSignature) {
		return ErrSignature
	}

	// 2. 签名正确后再解析payload
	payloadBytes, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return ErrMalformed
	}
	var payload Payload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return ErrMalformed
	}

	if s.maxAge > 0 && s.now().Sub(time.Unix(payload.IssuedAt, 0)) > s.maxAge {
		return ErrExpired
	}
	if payload.VoterID != voterID {
		return ErrVoter
	}
	return nil
}

func (s *Signer) sign(encodedPayload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
