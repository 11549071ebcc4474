package transport

import (
	"testing"

	"github.com/ellemouton/lnurlpay"
	"github.com/stretchr/testify/require"
)

func TestLightningAddressURL(t *testing.T) {
	url, err := LightningAddressURL("Alice@Example.com", false)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/.well-known/lnurlp/alice", url)

	url, err = LightningAddressURL("bob@xyz.onion", false)
	require.NoError(t, err)
	require.Equal(t, "http://xyz.onion/.well-known/lnurlp/bob", url)

	url, err = LightningAddressURL("bob@localhost:8080", true)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/.well-known/lnurlp/bob", url)

	for _, bad := range []string{"alice", "@example.com", "alice@", "a@b@c"} {
		_, err := LightningAddressURL(bad, false)
		require.ErrorIs(t, err, lnurlpay.ErrValidation, bad)
	}
}

func TestTargetURL(t *testing.T) {
	c := New(&Config{})

	tests := []struct {
		target string
		url    string
		err    bool
	}{
		{
			target: "alice@example.com",
			url:    "https://example.com/.well-known/lnurlp/alice",
		},
		{
			target: "lightning:alice@example.com",
			url:    "https://example.com/.well-known/lnurlp/alice",
		},
		{
			target: "lnurlp://example.com/pay",
			url:    "https://example.com/pay",
		},
		{
			target: "lnurlp://abc.onion/pay",
			url:    "http://abc.onion/pay",
		},
		{
			target: "https://example.com/pay",
			url:    "https://example.com/pay",
		},
		{
			target: "LNURL1DP68GURN8GHJ7",
			err:    true,
		},
		{
			target: "example.com",
			err:    true,
		},
	}

	for _, test := range tests {
		url, err := c.TargetURL(test.target)
		if test.err {
			require.ErrorIs(t, err, lnurlpay.ErrValidation)
			continue
		}

		require.NoError(t, err)
		require.Equal(t, test.url, url)
	}
}

func TestDedupe(t *testing.T) {
	targets := Dedupe([]string{
		" alice@example.com", "bob@example.com", "",
		"ALICE@example.com", "lightning:bob@example.com",
		"carol@example.com",
	})
	require.Equal(t, []string{
		"alice@example.com", "bob@example.com", "carol@example.com",
	}, targets)

	require.Equal(t, []string{"a@x.com", "b@x.com"},
		SplitTargets("a@x.com, b@x.com,a@x.com,"))
}
