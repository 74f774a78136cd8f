package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizePayload(t *testing.T) {
	t.Run("Keys sorted recursively", func(t *testing.T) {
		raw := []byte(`{"b":2,"a":{"z":1,"y":{"c":3,"b":2}},"c":[3,1,2]}`)

		canonical, err := CanonicalizePayload(raw)

		assert.NoError(t, err)
		assert.Equal(t, `{"a":{"y":{"b":2,"c":3},"z":1},"b":2,"c":[3,1,2]}`, string(canonical))
	})

	t.Run("Numbers keep their original spelling", func(t *testing.T) {
		raw := []byte(`{"actually_paid":0.512345678901,"payment_id":4945313071}`)

		canonical, err := CanonicalizePayload(raw)

		assert.NoError(t, err)
		assert.Equal(t, `{"actually_paid":0.512345678901,"payment_id":4945313071}`, string(canonical))
	})

	t.Run("Slashes are not escaped", func(t *testing.T) {
		raw := []byte(`{"url":"https://example.com/ipn"}`)

		canonical, err := CanonicalizePayload(raw)

		assert.NoError(t, err)
		assert.Equal(t, `{"url":"https://example.com/ipn"}`, string(canonical))
	})

	t.Run("Non-ASCII text becomes unicode escapes", func(t *testing.T) {
		raw := []byte(`{"order_description":"café ☃ 🙂"}`)

		canonical, err := CanonicalizePayload(raw)

		assert.NoError(t, err)
		assert.Equal(t, `{"order_description":"café ☃ 🙂"}`, string(canonical))
	})

	t.Run("Malformed body is rejected", func(t *testing.T) {
		_, err := CanonicalizePayload([]byte(`{"a":`))

		assert.Error(t, err)
	})
}

func TestVerify(t *testing.T) {
	secret := "super-secret-ipn-key"
	v := NewVerifier(secret)
	body := []byte(`{"payment_id":4945313071,"payment_status":"finished","order_id":"abc","actually_paid":0.5}`)

	t.Run("Signature over canonical form validates", func(t *testing.T) {
		canonical, err := CanonicalizePayload(body)
		assert.NoError(t, err)

		ok, _, err := v.Verify(body, v.Sign(canonical))

		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Key order in raw body does not matter", func(t *testing.T) {
		reordered := []byte(`{"actually_paid":0.5,"order_id":"abc","payment_id":4945313071,"payment_status":"finished"}`)
		canonical, err := CanonicalizePayload(body)
		assert.NoError(t, err)

		ok, _, err := v.Verify(reordered, v.Sign(canonical))

		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Single byte change breaks signature", func(t *testing.T) {
		canonical, err := CanonicalizePayload(body)
		assert.NoError(t, err)
		sig := v.Sign(canonical)

		tampered := []byte(`{"payment_id":4945313071,"payment_status":"finished","order_id":"abc","actually_paid":0.6}`)
		ok, expected, err := v.Verify(tampered, sig)

		assert.NoError(t, err)
		assert.False(t, ok)
		assert.NotEqual(t, sig, expected)
	})

	t.Run("Wrong secret fails", func(t *testing.T) {
		canonical, err := CanonicalizePayload(body)
		assert.NoError(t, err)

		other := NewVerifier("another-key")
		ok, _, err := other.Verify(body, v.Sign(canonical))

		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Secret whitespace is trimmed", func(t *testing.T) {
		padded := NewVerifier("  " + secret + "\n")
		canonical, err := CanonicalizePayload(body)
		assert.NoError(t, err)

		ok, _, err := padded.Verify(body, v.Sign(canonical))

		assert.NoError(t, err)
		assert.True(t, ok)
	})
}
