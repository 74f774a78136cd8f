package gateway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Verifier 校验网关回调 (IPN) 的 HMAC-SHA512 签名
// 网关对"按键名字母序排序后的 JSON"签名，这里重建同样的规范化串再比对
type Verifier struct {
	secret []byte
}

// NewVerifier 创建签名校验器，密钥两端空白会被裁剪
func NewVerifier(ipnSecret string) *Verifier {
	return &Verifier{secret: []byte(strings.TrimSpace(ipnSecret))}
}

// CanonicalizePayload 把原始回调报文规范化：
// 递归按键名字母序排序，序列化为不转义斜杠的紧凑 JSON，
// 非 ASCII 字符统一转成 \uXXXX 转义（网关侧的序列化器就是这么输出的）。
// 使用 json.Number 保留数字的原始写法，避免 10.0 被重写成 10 之类的偏差。
func CanonicalizePayload(rawBody []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(rawBody))
	dec.UseNumber()

	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	// encoding/json 对 map 序列化时本身就按键名排序（嵌套对象同理），
	// SetEscapeHTML(false) 保证 & < > 不被改写；Go 默认不转义斜杠
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("encode canonical payload: %w", err)
	}

	// Encode 会追加换行
	return escapeNonASCII(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// escapeNonASCII 把非 ASCII 字符改写成 \uXXXX（基本平面外用代理对）
// 合法 JSON 里非 ASCII 字节只会出现在字符串内，整段扫描是安全的
func escapeNonASCII(in []byte) []byte {
	ascii := true
	for _, b := range in {
		if b >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return in
	}

	var buf bytes.Buffer
	for _, r := range string(in) {
		switch {
		case r < 0x80:
			buf.WriteRune(r)
		case r > 0xFFFF:
			r -= 0x10000
			fmt.Fprintf(&buf, `\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
		default:
			fmt.Fprintf(&buf, `\u%04x`, r)
		}
	}
	return buf.Bytes()
}

// Sign 计算规范化报文的十六进制 HMAC-SHA512 摘要
func (v *Verifier) Sign(canonical []byte) string {
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 用原始请求体校验签名
// 返回 (是否通过, 本地计算的摘要)；摘要用于签名失败时的审计日志
func (v *Verifier) Verify(rawBody []byte, signature string) (bool, string, error) {
	canonical, err := CanonicalizePayload(rawBody)
	if err != nil {
		return false, "", err
	}

	expected := v.Sign(canonical)

	// hmac.Equal 是常数时间比较，耗时与首个不同字节的位置无关
	ok := hmac.Equal([]byte(expected), []byte(signature))
	return ok, expected, nil
}
